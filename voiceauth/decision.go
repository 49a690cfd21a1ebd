package voiceauth

import "github.com/zrma/go-voiceprint/voiceprint"

// Decision은 인증 판정이다.
type Decision int

const (
	Rejected Decision = iota
	Accepted
)

func (d Decision) String() string {
	if d == Accepted {
		return "ACCEPTED"
	}
	return "REJECTED"
}

// Decide는 similarity >= threshold이면 Accepted를 반환한다.
func Decide(similarity, threshold float64) Decision {
	if similarity >= threshold {
		return Accepted
	}
	return Rejected
}

// Result는 한 번의 인증 시도 결과다.
type Result struct {
	UserID     string
	Decision   Decision
	Similarity float64
	Threshold  float64
	// Probe는 인증에 쓰인 파형의 서명이다.
	Probe voiceprint.Signature
}

// Accepted는 판정이 Accepted인지 반환한다.
func (r Result) Accepted() bool { return r.Decision == Accepted }
