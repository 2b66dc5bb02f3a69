package models

import "time"

// Profile describes the candidate and role a mock interview targets.
type Profile struct {
	Role           string `json:"role"`
	ExperienceYrs  int    `json:"experienceYears"`
	Resume         string `json:"resume,omitempty"`
	JobDescription string `json:"jobDescription,omitempty"`
}

// Exchange is one question/answer pair in an interview. Image, when present,
// is a webcam still attached to the answer, as a JPEG data URL.
type Exchange struct {
	Turn     int       `json:"turn"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Image    string    `json:"image,omitempty"`
	AskedAt  time.Time `json:"askedAt"`
}

// Report is the feedback produced when an interview finishes.
type Report struct {
	Summary    string   `json:"summary"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
	Score      int      `json:"score"` // 1..10
}

// InterviewRecord is the persisted form of a completed interview.
type InterviewRecord struct {
	ID         string     `json:"id"`
	Profile    Profile    `json:"profile"`
	Exchanges  []Exchange `json:"exchanges"`
	Report     *Report    `json:"report,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
}
