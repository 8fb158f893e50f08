package pipeline

// NodeKind enumerates supported graph node kinds.
type NodeKind string

const (
	// KindIdentity nodes carry named fields without doing any work. They anchor
	// the workflow's input, buffer, and output interfaces.
	KindIdentity NodeKind = "identity"
	// KindTool nodes invoke an external binary.
	KindTool NodeKind = "tool"
	// KindIngress nodes materialize located input files as workflow fields.
	KindIngress NodeKind = "ingress"
	// KindSink nodes write a field's file into the derivatives tree.
	KindSink NodeKind = "sink"
)

// ToolSpec describes one external tool invocation. Args may contain
// placeholders of the form {field}; they are rendered against the node's
// materialized input paths and declared output paths at execution time.
type ToolSpec struct {
	Binary string   `yaml:"binary"`
	Args   []string `yaml:"args"`
	// Outputs maps a field name to the relative path the tool writes it to.
	Outputs map[string]string `yaml:"outputs"`
	// NThreads requests a thread budget via the tool's native flag when > 0.
	NThreads int `yaml:"nthreads"`
}

// IngressSpec describes how an ingress node locates its files. The fields it
// emits are resolved against InputDir by the ingestion activity.
type IngressSpec struct {
	Source    string `yaml:"source"` // qsiprep, ukb, hcpya, freesurfer
	SubjectID string `yaml:"subject_id"`
	InputDir  string `yaml:"input_dir"`
}

// SinkSpec describes a derivative output written by a sink node.
type SinkSpec struct {
	Suffix    string `yaml:"suffix"`
	Space     string `yaml:"space"`
	Atlas     string `yaml:"atlas"`
	Desc      string `yaml:"desc"`
	Extension string `yaml:"extension"`
	Compress  bool   `yaml:"compress"`
}

// Node is a single vertex in a subject's task graph.
type Node struct {
	ID      string       `yaml:"id"`
	Kind    NodeKind     `yaml:"kind"`
	Fields  []string     `yaml:"fields,omitempty"` // identity and ingress nodes
	Tool    *ToolSpec    `yaml:"tool,omitempty"`
	Ingress *IngressSpec `yaml:"ingress,omitempty"`
	Sink    *SinkSpec    `yaml:"sink,omitempty"`
}

// Edge connects a producer node's field to a consumer node's field.
type Edge struct {
	From      string `yaml:"from"`
	FromField string `yaml:"from_field"`
	To        string `yaml:"to"`
	ToField   string `yaml:"to_field"`
}

// Graph is a subject's task graph under construction. It is built
// synchronously at assembly time and compiled before submission.
type Graph struct {
	Name  string `yaml:"name"`
	Nodes []Node `yaml:"nodes"`
	Edges []Edge `yaml:"edges"`
}

// NewGraph returns an empty graph with the given name.
func NewGraph(name string) *Graph {
	return &Graph{Name: name}
}

// AddNode appends a node and returns its ID for convenience.
func (g *Graph) AddNode(n Node) string {
	g.Nodes = append(g.Nodes, n)
	return n.ID
}

// Connect adds a single field edge.
func (g *Graph) Connect(from, fromField, to, toField string) {
	g.Edges = append(g.Edges, Edge{From: from, FromField: fromField, To: to, ToField: toField})
}

// ConnectFields adds one edge per field name, keeping the name on both ends.
func (g *Graph) ConnectFields(from, to string, fields []string) {
	for _, f := range fields {
		g.Connect(from, f, to, f)
	}
}

// Merge copies another graph's nodes and edges into this one. Sub-workflow
// node IDs are expected to be pre-namespaced by their builder.
func (g *Graph) Merge(other *Graph) {
	g.Nodes = append(g.Nodes, other.Nodes...)
	g.Edges = append(g.Edges, other.Edges...)
}

// NodeByID returns a pointer to the node with the supplied ID, if present.
func (g *Graph) NodeByID(id string) *Node {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i]
		}
	}
	return nil
}
