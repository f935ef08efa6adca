package mcp

import "time"

// SearchPathsInput defines the input schema for the search_paths tool.
type SearchPathsInput struct {
	Query       string   `json:"query" jsonschema:"part of a file name; case and accents are ignored"`
	ProjectPath string   `json:"project_path,omitempty" jsonschema:"restrict results to folders attached to this project"`
	Limit       int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 20"`
	Extensions  []string `json:"extensions,omitempty" jsonschema:"keep only these file extensions, e.g. ts or .md"`
}

// SearchPathsOutput defines the output schema for the search_paths tool.
type SearchPathsOutput struct {
	Results []PathResult `json:"results" jsonschema:"matching files, best match first"`
}

// PathResult is one matching file.
type PathResult struct {
	FileName     string    `json:"file_name" jsonschema:"original file name"`
	FullPath     string    `json:"full_path" jsonschema:"absolute path on disk"`
	RelativePath string    `json:"relative_path" jsonschema:"path relative to the attached folder"`
	FolderID     string    `json:"folder_id" jsonschema:"id of the attached folder"`
	Extension    string    `json:"extension,omitempty" jsonschema:"lowercase extension without the dot"`
	Size         int64     `json:"size" jsonschema:"size in bytes"`
	ModifiedAt   time.Time `json:"modified_at" jsonschema:"last modification time"`
	MIMEType     string    `json:"mime_type" jsonschema:"MIME type guessed from the name"`
	MatchReason  string    `json:"match_reason" jsonschema:"exact, prefix or contains"`
}

// ListFoldersInput defines the input schema for the list_folders tool.
type ListFoldersInput struct {
	ProjectPath string `json:"project_path,omitempty" jsonschema:"only folders attached to this project"`
}

// ListFoldersOutput defines the output schema for the list_folders tool.
type ListFoldersOutput struct {
	Folders []FolderOutput `json:"folders" jsonschema:"attached folders"`
}

// FolderOutput describes one attached folder.
type FolderOutput struct {
	ID            string     `json:"id"`
	ProjectPath   string     `json:"project_path"`
	FolderPath    string     `json:"folder_path"`
	Status        string     `json:"status" jsonschema:"pending, indexing, indexed or error"`
	FileCount     int        `json:"file_count"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Folders   int                `json:"folders"`
	Entries   int                `json:"entries"`
	ByStatus  map[string]int     `json:"by_status"`
	Watching  int                `json:"watching"`
	Indexing  []IndexingProgress `json:"indexing,omitempty"`
	Ready     bool               `json:"ready" jsonschema:"true when no folder is pending or indexing"`
	CheckedAt string             `json:"checked_at"`
}

// IndexingProgress contains information about one running scan.
type IndexingProgress struct {
	OperationID    string  `json:"operation_id"`
	FolderID       string  `json:"folder_id"`
	Phase          string  `json:"phase"`
	Current        int     `json:"current"`
	Total          *int    `json:"total,omitempty"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	CurrentFile    string  `json:"current_file,omitempty"`
}
