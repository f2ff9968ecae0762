package remote

// TransferSet is the expanded, deduplicated collection of nodes of one batch.
// Iteration follows insertion order.
type TransferSet struct {
	files map[string]*TransferFile
	order []string
}

func NewTransferSet(files ...*TransferFile) *TransferSet {
	s := &TransferSet{files: make(map[string]*TransferFile)}
	for _, f := range files {
		s.Add(f)
	}
	return s
}

// Add inserts file, returning false if a node with the same path was
// already present. A node carrying its parent chain replaces a detached one.
func (s *TransferSet) Add(file *TransferFile) bool {
	key := file.Key()
	if existing, ok := s.files[key]; ok {
		if existing.parent == nil && file.parent != nil {
			s.files[key] = file
		}
		return false
	}
	s.files[key] = file
	s.order = append(s.order, key)
	return true
}

func (s *TransferSet) Contains(file *TransferFile) bool {
	_, ok := s.files[file.Key()]
	return ok
}

func (s *TransferSet) Get(relPath string) *TransferFile {
	return s.files[relPath]
}

func (s *TransferSet) Len() int {
	return len(s.order)
}

func (s *TransferSet) Files() []*TransferFile {
	result := make([]*TransferFile, 0, len(s.order))
	for _, key := range s.order {
		result = append(result, s.files[key])
	}
	return result
}
