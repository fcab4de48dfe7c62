package domain

// Product is a single item promoted by a campaign.
type Product struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	// CutoutImage is an absolute path to a local subject image. When set the
	// product is composited into a generated scene instead of being drawn
	// from text alone.
	CutoutImage string `json:"cutoutImage,omitempty" yaml:"cutoutImage,omitempty"`
}

// HasCutout reports whether the product carries a compositing subject.
func (p Product) HasCutout() bool {
	return p.CutoutImage != ""
}

// CampaignBrief is the structured marketing input for a generation run.
type CampaignBrief struct {
	Name            string    `json:"name" yaml:"name"`
	TargetRegion    string    `json:"targetRegion" yaml:"targetRegion"`
	TargetAudience  string    `json:"targetAudience" yaml:"targetAudience"`
	CampaignMessage string    `json:"campaignMessage" yaml:"campaignMessage"`
	Products        []Product `json:"products" yaml:"products"`
}

// Unit is one (product, aspect ratio) work item.
type Unit struct {
	Product Product
	// Ratio is the key used for generation and for the output path.
	Ratio string
	// RequestedRatio is what the caller asked for before approximation.
	RequestedRatio string
}

// Progress is delivered once per processed unit, successful or not.
type Progress struct {
	Index   int
	Total   int
	Product Product
	Ratio   string
	Files   []string
	Err     error
}

// Failed reports whether the unit ended without any written file.
func (p Progress) Failed() bool {
	return p.Err != nil
}
