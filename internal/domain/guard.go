package domain

// GuardMode selects what an injected guard script does in the page realm.
// It travels as a single attribute on the script element and is read exactly
// once, when the script starts.
type GuardMode string

const (
	GuardEnable  GuardMode = "enable"
	GuardDisable GuardMode = "disable"
)

func (m GuardMode) String() string {
	return string(m)
}

func (m GuardMode) Valid() bool {
	return m == GuardEnable || m == GuardDisable
}
