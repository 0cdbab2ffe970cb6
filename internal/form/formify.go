package form

// FormifyArgs is what a FormifyFunc receives for every new document form.
type FormifyArgs struct {
	// Config is the configuration the bridge would use on its own.
	Config Config
	// CreateForm builds a form bound to the document.
	CreateForm func(Config) *Form
	// CreateGlobalForm builds a form that outlives its queries.
	CreateGlobalForm func(Config) *Form
	// Skip marks the document as not editable; the callback then returns nil.
	Skip func()
}

// FormifyFunc decides how a document is surfaced to the editor. Returning
// nil keeps the form hidden: it still holds state but is never shown.
type FormifyFunc func(args FormifyArgs) *Form

// Formify builds the form for cfg, consulting fn when it is set. The
// returned flag reports whether the form should be surfaced.
func Formify(fn FormifyFunc, cfg Config) (*Form, bool) {
	if fn == nil {
		return New(cfg), true
	}
	f := fn(FormifyArgs{
		Config:           cfg,
		CreateForm:       New,
		CreateGlobalForm: NewGlobal,
		Skip:             func() {},
	})
	if f == nil {
		return New(cfg), false
	}
	return f, true
}
