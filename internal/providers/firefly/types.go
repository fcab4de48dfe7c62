package firefly

// Size is an output size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContentClass steers the model towards photographic or illustrated output.
type ContentClass string

const (
	ContentClassPhoto ContentClass = "photo"
	ContentClassArt   ContentClass = "art"
)

// ModelVersion selects a Firefly image model through the x-model-version
// header.
type ModelVersion string

const (
	ModelImage3         ModelVersion = "image3"
	ModelImage4         ModelVersion = "image4"
	ModelImage3Custom   ModelVersion = "image3_custom"
	ModelImage4Standard ModelVersion = "image4_standard"
	ModelImage4Ultra    ModelVersion = "image4_ultra"
	ModelImage4Custom   ModelVersion = "image4_custom"
)

// ModelVersions lists the accepted header values.
var ModelVersions = []ModelVersion{
	ModelImage3, ModelImage4, ModelImage3Custom,
	ModelImage4Standard, ModelImage4Ultra, ModelImage4Custom,
}

// Valid reports whether v is empty or one of ModelVersions.
func (v ModelVersion) Valid() bool {
	if v == "" {
		return true
	}
	for _, known := range ModelVersions {
		if v == known {
			return true
		}
	}
	return false
}

// BinaryInput references an image by URL or by a prior upload id.
type BinaryInput struct {
	URL      string `json:"url,omitempty"`
	UploadID string `json:"uploadId,omitempty"`
}

type InputImage struct {
	Source BinaryInput `json:"source"`
}

type Alignment struct {
	Horizontal string `json:"horizontal,omitempty"`
	Vertical   string `json:"vertical,omitempty"`
}

type Inset struct {
	Top    int `json:"top,omitempty"`
	Right  int `json:"right,omitempty"`
	Bottom int `json:"bottom,omitempty"`
	Left   int `json:"left,omitempty"`
}

type Placement struct {
	Alignment *Alignment `json:"alignment,omitempty"`
	Inset     *Inset     `json:"inset,omitempty"`
}

// CenterPlacement centres the composited subject on the canvas.
func CenterPlacement() *Placement {
	return &Placement{Alignment: &Alignment{Horizontal: "center", Vertical: "center"}}
}

// GenerateImagesRequest is the body of POST /v3/images/generate-async.
type GenerateImagesRequest struct {
	Prompt                  string       `json:"prompt"`
	ContentClass            ContentClass `json:"contentClass,omitempty"`
	NumVariations           int          `json:"numVariations,omitempty"`
	Size                    *Size        `json:"size,omitempty"`
	Seeds                   []int64      `json:"seeds,omitempty"`
	CustomModelID           string       `json:"customModelId,omitempty"`
	PromptBiasingLocaleCode string       `json:"promptBiasingLocaleCode,omitempty"`
	VisualIntensity         int          `json:"visualIntensity,omitempty"`
}

// ObjectCompositeRequest is the body of
// POST /v3/images/generate-object-composite-async.
type ObjectCompositeRequest struct {
	Prompt        string       `json:"prompt"`
	Image         InputImage   `json:"image"`
	ContentClass  ContentClass `json:"contentClass,omitempty"`
	NumVariations int          `json:"numVariations,omitempty"`
	Placement     *Placement   `json:"placement,omitempty"`
	Size          *Size        `json:"size,omitempty"`
	Seeds         []int64      `json:"seeds,omitempty"`
}

// AsyncAccepted is returned when a job has been queued.
type AsyncAccepted struct {
	JobID     string `json:"jobId"`
	StatusURL string `json:"statusUrl,omitempty"`
	CancelURL string `json:"cancelUrl,omitempty"`
}

// JobStatus is the lifecycle state reported by GET /v3/status/{jobId}.
type JobStatus string

const (
	StatusRunning       JobStatus = "running"
	StatusCancelPending JobStatus = "cancel_pending"
	StatusSucceeded     JobStatus = "succeeded"
	StatusCancelled     JobStatus = "cancelled"
	StatusFailed        JobStatus = "failed"
	StatusTimeout       JobStatus = "timeout"
)

// Pending reports whether the job may still change state.
func (s JobStatus) Pending() bool {
	return s == StatusRunning || s == StatusCancelPending
}

type OutputImage struct {
	URL string `json:"url"`
}

// Output is one generated variation.
type Output struct {
	Image OutputImage `json:"image"`
	Seed  int64       `json:"seed"`
}

type JobOutcome struct {
	ContentClass ContentClass `json:"contentClass,omitempty"`
	Outputs      []Output     `json:"outputs"`
	Size         Size         `json:"size"`
}

// JobResult is a status snapshot. Result is only populated once the job has
// succeeded; ErrorCode and Message accompany the failure states.
type JobResult struct {
	JobID     string      `json:"jobId"`
	Status    JobStatus   `json:"status"`
	Result    *JobOutcome `json:"result,omitempty"`
	ErrorCode string      `json:"error_code,omitempty"`
	Message   string      `json:"message,omitempty"`
}

// Outputs returns the generated variations, or nil before success.
func (r *JobResult) Outputs() []Output {
	if r == nil || r.Result == nil {
		return nil
	}
	return r.Result.Outputs
}

type uploadResponse struct {
	Images []struct {
		ID string `json:"id"`
	} `json:"images"`
}

type BaseModel struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// CustomModel describes a trained model available to the caller.
type CustomModel struct {
	AssetID        string     `json:"assetId,omitempty"`
	AssetName      string     `json:"assetName,omitempty"`
	DisplayName    string     `json:"displayName,omitempty"`
	Version        string     `json:"version,omitempty"`
	TrainingMode   string     `json:"trainingMode,omitempty"`
	MediaType      string     `json:"mediaType,omitempty"`
	PublishedState string     `json:"publishedState,omitempty"`
	SamplePrompt   string     `json:"samplePrompt,omitempty"`
	CreatedDate    string     `json:"createdDate,omitempty"`
	ModifiedDate   string     `json:"modifiedDate,omitempty"`
	BaseModel      *BaseModel `json:"baseModel,omitempty"`
}

type CustomModels struct {
	Models     []CustomModel `json:"custom_models"`
	TotalCount int           `json:"total_count"`
}

// ListModelsParams are the optional query parameters of GET /v3/custom-models.
type ListModelsParams struct {
	SortBy         string
	Start          string
	Limit          string
	PublishedState string
}

type errorResponse struct {
	ErrorCode string `json:"error_code"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
}
