package risk

import "github.com/mchmarny/leadpulse/pkg/lead"

const (
	ActionFreeXRay     = "No x-ray submitted yet. Instead of a discount, book a free x-ray analysis appointment."
	ActionVIPOffer     = "Lead is engaged and close to booking. Send the offer pack with VIP transfer and hotel details."
	ActionPersonalCall = "High churn risk despite a submitted x-ray. Escalate to a personal call from the treatment advisor."
)

// Recommend returns the sales follow-up for a scored lead.
func Recommend(f lead.Features, p *Prediction) string {
	if p == nil {
		return ""
	}
	switch {
	case p.Churn && !f.XRaySubmitted:
		return ActionFreeXRay
	case p.Churn:
		return ActionPersonalCall
	default:
		return ActionVIPOffer
	}
}
