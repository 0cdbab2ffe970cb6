package events

// FormSubmit is emitted after a form's values were sent to the update
// mutation.
type FormSubmit struct {
	FormID     string
	Collection string
	Err        error
}
