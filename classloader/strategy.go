package classloader

// Strategy answers whether it owns a symbol family and where a symbol's
// source unit lives. Any component may register itself as a Strategy.
type Strategy interface {
	CanResolve(symbol string) bool
	LocateSource(symbol string) string
}

// StrategyFuncs adapts a pair of functions to Strategy.
type StrategyFuncs struct {
	Can    func(symbol string) bool
	Locate func(symbol string) string
}

func (s StrategyFuncs) CanResolve(symbol string) bool {
	return s.Can != nil && s.Can(symbol)
}

func (s StrategyFuncs) LocateSource(symbol string) string {
	if s.Locate == nil {
		return ""
	}
	return s.Locate(symbol)
}
