package audit

// PurgeStats accumulates the outcome of one run, for a folder or overall.
type PurgeStats struct {
	Scanned int
	Deleted int
	Kept    int
	Errors  int

	DeletedBytes int64
	KeptBytes    int64
}

// Add folds o into s.
func (s *PurgeStats) Add(o PurgeStats) {
	s.Scanned += o.Scanned
	s.Deleted += o.Deleted
	s.Kept += o.Kept
	s.Errors += o.Errors
	s.DeletedBytes += o.DeletedBytes
	s.KeptBytes += o.KeptBytes
}

// FolderStats is the PurgeStats of one recovery folder.
type FolderStats struct {
	Folder string
	PurgeStats
}

// Summary is the end-of-run snapshot. Folders are in the order they were
// first seen, which is scan order.
type Summary struct {
	Total   PurgeStats
	Folders []FolderStats
}
