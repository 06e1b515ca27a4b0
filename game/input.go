package game

// InputState 坦克当前生效的按键状态
type InputState struct {
	Forward   bool `json:"forward"`
	Backward  bool `json:"backward"`
	TurnLeft  bool `json:"turnLeft"`
	TurnRight bool `json:"turnRight"`
	Fire      bool `json:"fire"`
}

// InputPayload 客户端上报的按键（未校验）。指针用于区分“缺失”和“false”
type InputPayload struct {
	Forward   *bool `json:"forward"`
	Backward  *bool `json:"backward"`
	TurnLeft  *bool `json:"turnLeft"`
	TurnRight *bool `json:"turnRight"`
	Fire      *bool `json:"fire"`
}

// Complete 五个字段是否都存在
func (p InputPayload) Complete() bool {
	return p.Forward != nil && p.Backward != nil && p.TurnLeft != nil && p.TurnRight != nil && p.Fire != nil
}

// State 转成 InputState，缺失字段视为 false
func (p InputPayload) State() InputState {
	return InputState{
		Forward:   deref(p.Forward),
		Backward:  deref(p.Backward),
		TurnLeft:  deref(p.TurnLeft),
		TurnRight: deref(p.TurnRight),
		Fire:      deref(p.Fire),
	}
}

// PayloadOf 构造一个字段齐全的 InputPayload
func PayloadOf(s InputState) InputPayload {
	return InputPayload{
		Forward:   &s.Forward,
		Backward:  &s.Backward,
		TurnLeft:  &s.TurnLeft,
		TurnRight: &s.TurnRight,
		Fire:      &s.Fire,
	}
}

func deref(b *bool) bool {
	return b != nil && *b
}

// PlayerInput 一条带序列号的输入消息（sequence / timestamp 由客户端提供）
type PlayerInput struct {
	Sequence  int64
	Timestamp int64 // 客户端时间 ms
	Input     InputPayload
}

// InputRecord 输入历史条目
type InputRecord struct {
	Sequence   int64      `json:"sequence"`
	Timestamp  int64      `json:"timestamp"`
	ServerTime int64      `json:"serverTime"`
	Input      InputState `json:"input"`
}
