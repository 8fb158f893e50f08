package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueCodes(t *testing.T, err error) []string {
	t.Helper()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	codes := make([]string, len(verr.Issues))
	for i, issue := range verr.Issues {
		codes[i] = issue.Code
	}
	return codes
}

func TestValidateGraphAcceptsWellFormedGraph(t *testing.T) {
	g := NewGraph("ok_wf")
	g.AddNode(identityNode("inputnode", "dwi_file"))
	g.AddNode(Node{ID: "source", Kind: KindIngress, Ingress: &IngressSpec{Source: "qsiprep", SubjectID: "01"}, Fields: []string{"t1_preproc"}})
	g.AddNode(toolNode("mask", "3dAutomask"))
	g.AddNode(Node{ID: "ds_mask", Kind: KindSink, Sink: &SinkSpec{Suffix: "mask"}})
	g.Connect("inputnode", "dwi_file", "mask", "in_file")
	g.Connect("mask", "out_file", "ds_mask", "in_file")

	assert.NoError(t, ValidateGraph(g))
}

func TestValidateGraphNil(t *testing.T) {
	err := ValidateGraph(nil)
	assert.Equal(t, []string{"graph_nil"}, issueCodes(t, err))
}

func TestValidateGraphEmptyAndUnnamed(t *testing.T) {
	err := ValidateGraph(NewGraph(""))
	assert.ElementsMatch(t, []string{"graph_name_missing", "graph_empty"}, issueCodes(t, err))
}

func TestValidateGraphNodeIssues(t *testing.T) {
	tests := []struct {
		name string
		node Node
		code string
	}{
		{"missing id", Node{Kind: KindTool, Tool: &ToolSpec{Binary: "x"}}, "node_id_missing"},
		{"unknown kind", Node{ID: "n", Kind: NodeKind("mapper")}, "node_kind_unknown"},
		{"tool without binary", Node{ID: "n", Kind: KindTool, Tool: &ToolSpec{}}, "tool_missing"},
		{"identity without fields", Node{ID: "n", Kind: KindIdentity}, "identity_fields_missing"},
		{"ingress without source", Node{ID: "n", Kind: KindIngress, Ingress: &IngressSpec{}}, "ingress_missing"},
		{"sink without spec", Node{ID: "n", Kind: KindSink}, "sink_missing"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := NewGraph("wf")
			g.AddNode(tc.node)
			assert.Contains(t, issueCodes(t, ValidateGraph(g)), tc.code)
		})
	}
}

func TestValidateGraphDuplicateNodeID(t *testing.T) {
	g := NewGraph("wf")
	g.AddNode(identityNode("inputnode", "a"))
	g.AddNode(identityNode("inputnode", "b"))

	assert.Contains(t, issueCodes(t, ValidateGraph(g)), "node_id_duplicate")
}

func TestValidateGraphEdgeIssues(t *testing.T) {
	g := NewGraph("wf")
	g.AddNode(identityNode("inputnode", "dwi_file"))
	g.Connect("ghost", "out_file", "inputnode", "dwi_file")
	g.Connect("inputnode", "dwi_file", "phantom", "in_file")
	g.Connect("inputnode", "", "inputnode", "dwi_file")

	codes := issueCodes(t, ValidateGraph(g))
	assert.Contains(t, codes, "edge_from_unknown")
	assert.Contains(t, codes, "edge_to_unknown")
	assert.Contains(t, codes, "edge_field_missing")
}

func TestValidateGraphChecksIdentityFieldNames(t *testing.T) {
	// Edges leaving an identity or ingress node must name a declared field;
	// a typo here would otherwise only surface when the workflow runs.
	g := NewGraph("wf")
	g.AddNode(identityNode("inputnode", "dwi_file"))
	g.AddNode(toolNode("mask", "3dAutomask"))
	g.Connect("inputnode", "dwi_fiel", "mask", "in_file")

	err := ValidateGraph(g)
	assert.Contains(t, issueCodes(t, err), "edge_field_unknown")
	assert.Contains(t, err.Error(), `does not carry field "dwi_fiel"`)
}
