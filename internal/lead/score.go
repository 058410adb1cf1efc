package lead

// Signal weights. A callable phone number carries the most weight because it
// gates outreach entirely; website and social presence add moderate weight.
// The same constants drive initial classification and re-classification after
// marketing verification, so re-scoring is deterministic.
const (
	weightWhatsAppPhone = 40
	weightPhone         = 30
	weightWebsite       = 25
	weightSocial        = 15
	weightFullAddress   = 10
	weightCategory      = 5
)

// Classification cut points, evaluated top-down.
const (
	ThresholdHot  = 80
	ThresholdWarm = 60
	ThresholdCool = 40
)

// Signals are the scoring inputs extracted from a lead. Missing signals
// contribute zero; Bonus is the non-negative marketing-verification bonus.
type Signals struct {
	HasPhone    bool
	HasWhatsApp bool
	HasWebsite  bool
	HasSocial   bool
	FullAddress bool
	HasCategory bool
	Bonus       int
}

// Score computes the opportunity score as the sum of independent signal
// weights. Total function: never fails, never clamps; clamping happens at
// the classification boundaries.
func Score(s Signals) int {
	score := 0
	switch {
	case s.HasPhone && s.HasWhatsApp:
		score += weightWhatsAppPhone
	case s.HasPhone:
		score += weightPhone
	}
	if s.HasWebsite {
		score += weightWebsite
	}
	if s.HasSocial {
		score += weightSocial
	}
	if s.FullAddress {
		score += weightFullAddress
	}
	if s.HasCategory {
		score += weightCategory
	}
	if s.Bonus > 0 {
		score += s.Bonus
	}
	return score
}

// Classify maps a score onto a tier. Monotone nondecreasing in score, so a
// non-negative bonus can only keep or raise the tier.
func Classify(score int) Classification {
	switch {
	case score >= ThresholdHot:
		return ClassificationHot
	case score >= ThresholdWarm:
		return ClassificationWarm
	case score >= ThresholdCool:
		return ClassificationCool
	default:
		return ClassificationCold
	}
}

// SignalsFrom extracts scoring signals from a lead record.
func SignalsFrom(l Lead) Signals {
	return Signals{
		HasPhone:    NormalizePhone(l.Phone) != "",
		HasWhatsApp: l.HasWhatsApp,
		HasWebsite:  l.Website != "",
		HasSocial:   l.Instagram != "",
		FullAddress: l.Address != "" && l.City != "",
		HasCategory: l.Category != "",
	}
}

// Rescore recomputes the lead's score and classification from its current
// signals plus the given bonus, keeping the classification == Classify(score)
// invariant.
func Rescore(l *Lead, bonus int) {
	sig := SignalsFrom(*l)
	if bonus > 0 {
		sig.Bonus = bonus
	}
	l.Score = Score(sig)
	l.Classification = Classify(l.Score)
}
