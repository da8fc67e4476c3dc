package orchestratornode

import "errors"

// FinalizeReply unwraps the graph state into the caller-facing output.
func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Response == nil {
		return GraphOutput{}, errors.New("pipeline finished without a response")
	}
	return GraphOutput{Response: in.Response}, nil
}
