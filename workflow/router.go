package workflow

// View identifies the single active screen for a step.
type View string

const (
	ViewPrompt        View = "prompt"
	ViewCaptionReview View = "caption_review"
	ViewImageReview   View = "image_review"
	ViewSchedule      View = "schedule"
	ViewPublishStatus View = "publish_status"
)

// ViewFor maps a step to its view. Publish and completed share the publish
// status view, which shows the completion banner once the step is completed.
func ViewFor(step Step) View {
	switch step {
	case StepReviewCaption:
		return ViewCaptionReview
	case StepReviewImage:
		return ViewImageReview
	case StepSchedule:
		return ViewSchedule
	case StepPublish, StepCompleted:
		return ViewPublishStatus
	default:
		return ViewPrompt
	}
}
