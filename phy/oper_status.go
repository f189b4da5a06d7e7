package phy

type (
	// OperStatus are the possible states of the physical transmit
	// interface as seen through its active-low reset line.
	OperStatus int
)

const (
	OperStatusDown OperStatus = iota
	OperStatusUp
)

func (o OperStatus) String() string {
	if o == OperStatusUp {
		return "up"
	}
	return "down"
}
