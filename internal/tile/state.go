package tile

// State 磁贴状态，只有 default / patient 两个取值
type State string

const (
	StateDefault State = "default"
	StatePatient State = "patient"
)

// Color 磁贴背景色，由 State 派生
type Color string

const (
	ColorDefault Color = "#000000"
	ColorPatient Color = "#008000"
)

// ParseState 解码持久化的状态字符串；未知值归一为 default
func ParseState(s string) State {
	if s == string(StatePatient) {
		return StatePatient
	}
	return StateDefault
}

// StateFor presence => patient, absence => default
func StateFor(present bool) State {
	if present {
		return StatePatient
	}
	return StateDefault
}

func (s State) String() string { return string(s) }

// Color 返回状态对应的背景色
func (s State) Color() Color {
	if s == StatePatient {
		return ColorPatient
	}
	return ColorDefault
}

// Letter 磁贴上显示的字母：P / D
func (s State) Letter() string {
	if s == StatePatient {
		return "P"
	}
	return "D"
}

// Snapshot Current 返回的只读视图
type Snapshot struct {
	State State `json:"state"`
	Color Color `json:"color"`
}

// Letter 快照对应的磁贴字母
func (s Snapshot) Letter() string { return s.State.Letter() }
