package domain

// Label names a step in the workflow graph, or one of the two terminal states.
type Label string

// Step labels produced by the router.
const (
	StepSearch       Label = "search"
	StepRetrieve     Label = "retrieve"
	StepGenerate     Label = "generate"
	StepExecuteTools Label = "execute_tools"
	StepValidate     Label = "validate"
	StepSynthesize   Label = "synthesize"
)

// Terminal labels. Reaching one of them ends the run.
const (
	LabelEnd    Label = "end"
	LabelFailed Label = "failed"
)

// IsTerminal reports whether the label ends a run.
func (l Label) IsTerminal() bool {
	return l == LabelEnd || l == LabelFailed
}

// Steps lists every non-terminal label in canonical order.
var Steps = []Label{
	StepSearch,
	StepRetrieve,
	StepGenerate,
	StepExecuteTools,
	StepValidate,
	StepSynthesize,
}
