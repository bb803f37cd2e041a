package enum

type MatchMethod string

const (
	MatchMethodOrderNumber   MatchMethod = "order_number"
	MatchMethodEmailFallback MatchMethod = "email_fallback"
	MatchMethodNone          MatchMethod = "none"
)

func (t MatchMethod) String() string {
	return string(t)
}
