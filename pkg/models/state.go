package models

// State is the whole persisted document
type State struct {
	ReadingLog      ReadingLog               `json:"readingLog"`
	ReadingSessions map[int64]ReadingSession `json:"readingSession"`
	MCQs            []Question               `json:"mcqs"`
	Tests           []TestRecord             `json:"tests"`
	AskedHistory    map[int64]QuestionUsage  `json:"askedHistory"`
	TargetHours     int                      `json:"targetHours"`
	MissedTargets   int                      `json:"missedTargets"`
	GroupChatID     int64                    `json:"groupChatId,omitempty"`

	// LastQuestionID is the highest id ever issued, deleted questions included
	LastQuestionID int64 `json:"lastQuestionId,omitempty"`
}

// NewState returns an empty document with the given daily target
func NewState(targetHours int) *State {
	s := &State{TargetHours: targetHours}
	s.Normalize()
	return s
}

// Normalize fills nil maps after decoding
func (s *State) Normalize() {
	if s.ReadingLog == nil {
		s.ReadingLog = make(ReadingLog)
	}
	if s.ReadingSessions == nil {
		s.ReadingSessions = make(map[int64]ReadingSession)
	}
	if s.AskedHistory == nil {
		s.AskedHistory = make(map[int64]QuestionUsage)
	}
}

// Clone returns a deep copy
func (s *State) Clone() *State {
	c := &State{
		ReadingLog:      make(ReadingLog, len(s.ReadingLog)),
		ReadingSessions: make(map[int64]ReadingSession, len(s.ReadingSessions)),
		MCQs:            append([]Question(nil), s.MCQs...),
		Tests:           append([]TestRecord(nil), s.Tests...),
		AskedHistory:    make(map[int64]QuestionUsage, len(s.AskedHistory)),
		TargetHours:     s.TargetHours,
		MissedTargets:   s.MissedTargets,
		GroupChatID:     s.GroupChatID,
		LastQuestionID:  s.LastQuestionID,
	}
	for k, v := range s.ReadingLog {
		c.ReadingLog[k] = v
	}
	for k, v := range s.ReadingSessions {
		c.ReadingSessions[k] = v
	}
	for k, v := range s.AskedHistory {
		c.AskedHistory[k] = v
	}
	return c
}

// NextQuestionID returns an id never issued before. Ids of deleted questions
// are not reused.
func (s *State) NextQuestionID() int64 {
	max := s.LastQuestionID
	for _, q := range s.MCQs {
		if q.ID > max {
			max = q.ID
		}
	}
	return max + 1
}

// NextTestID returns an id larger than any stored test record
func (s *State) NextTestID() int64 {
	var max int64
	for _, t := range s.Tests {
		if t.ID > max {
			max = t.ID
		}
	}
	return max + 1
}
