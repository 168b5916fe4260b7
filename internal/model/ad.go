package model

import "time"

// Brand is a competitor discovered for the subject vertical.
type Brand struct {
	Name      string `json:"name"`
	PageID    string `json:"page_id"`
	Source    string `json:"source"` // "registry" or "search"
	ActiveAds int    `json:"active_ads"`
	Rank      int    `json:"rank,omitempty"`
}

// Ad is one creative pulled from the ad library.
type Ad struct {
	ID         string    `json:"id"`
	Brand      string    `json:"brand"`
	PageID     string    `json:"page_id"`
	Headline   string    `json:"headline"`
	BodyText   string    `json:"body_text"`
	CTAText    string    `json:"cta_text,omitempty"`
	ImageURL   string    `json:"image_url,omitempty"`
	LandingURL string    `json:"landing_url,omitempty"`
	Platforms  []string  `json:"platforms,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Active     bool      `json:"active"`
}

// CreativeText returns the text that labeling and embedding stages operate
// on: headline plus body, whichever parts exist.
func (a Ad) CreativeText() string {
	switch {
	case a.Headline != "" && a.BodyText != "":
		return a.Headline + "\n\n" + a.BodyText
	case a.Headline != "":
		return a.Headline
	default:
		return a.BodyText
	}
}

// AdLabel holds the strategic attributes classified for one ad.
type AdLabel struct {
	AdID        string  `json:"ad_id"`
	Brand       string  `json:"brand"`
	Angle       string  `json:"angle"`        // e.g. "social_proof", "urgency", "value"
	Offer       string  `json:"offer"`        // e.g. "discount", "free_trial", "none"
	FunnelStage string  `json:"funnel_stage"` // "awareness", "consideration", "conversion"
	Persona     string  `json:"persona"`
	Confidence  float64 `json:"confidence"`
}

// AdEmbedding pairs an ad with its creative-text embedding vector.
type AdEmbedding struct {
	AdID   string    `json:"ad_id"`
	Brand  string    `json:"brand"`
	Model  string    `json:"model"`
	Vector []float64 `json:"vector"`
}

// VisualFinding holds the vision-model analysis of one sampled creative.
type VisualFinding struct {
	AdID         string   `json:"ad_id"`
	Brand        string   `json:"brand"`
	Style        string   `json:"style"` // e.g. "lifestyle", "product_shot", "ugc"
	HasFaces     bool     `json:"has_faces"`
	HasText      bool     `json:"has_text"`
	DominantHues []string `json:"dominant_hues,omitempty"`
	Summary      string   `json:"summary"`
}

// BrandStrategy aggregates an individual brand's labeled ads into a
// strategy profile.
type BrandStrategy struct {
	Brand         string             `json:"brand"`
	AdCount       int                `json:"ad_count"`
	AngleMix      map[string]float64 `json:"angle_mix"`
	OfferMix      map[string]float64 `json:"offer_mix"`
	FunnelMix     map[string]float64 `json:"funnel_mix"`
	DominantAngle string             `json:"dominant_angle"`
	DominantOffer string             `json:"dominant_offer"`
}
