package document

import "github.com/aretw0/introspection"

// DocumentState summarizes one open document.
type DocumentState struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Format string `json:"format"`
	Path   string `json:"path,omitempty"`
	Dirty  bool   `json:"dirty"`
	Words  int    `json:"words"`
}

// ManagerState is the observable state of a Manager.
type ManagerState struct {
	Initialized  bool            `json:"initialized"`
	MaxDocuments int             `json:"max_documents"`
	Watching     bool            `json:"watching"`
	Documents    []DocumentState `json:"documents"`
}

// State implements introspection.Introspectable.
func (m *Manager) State() any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := ManagerState{
		Initialized:  m.initialized,
		MaxDocuments: m.maxDocuments,
		Watching:     m.watcher != nil && m.watcher.Active(),
	}
	for _, id := range m.order {
		doc := m.docs[id]
		st.Documents = append(st.Documents, DocumentState{
			ID:     id.String(),
			Title:  doc.Title,
			Format: doc.Format.String(),
			Path:   doc.FilePath,
			Dirty:  doc.Dirty,
			Words:  doc.Metadata.WordCount,
		})
	}
	return st
}

// ComponentType implements introspection.Component.
func (m *Manager) ComponentType() string {
	return "document_manager"
}

var _ introspection.Introspectable = (*Manager)(nil)
var _ introspection.Component = (*Manager)(nil)
