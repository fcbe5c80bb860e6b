package domain

type TradingSignal int

const (
	NoAction TradingSignal = iota
	OpenLong
	OpenShort
	CloseAll
)

func (s TradingSignal) String() string {
	switch s {
	case NoAction:
		return "NO_ACTION"
	case OpenLong:
		return "OPEN_LONG"
	case OpenShort:
		return "OPEN_SHORT"
	case CloseAll:
		return "CLOSE_ALL"
	default:
		return "UNKNOWN"
	}
}
