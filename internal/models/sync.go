package models

// SyncDefinition describes how one directory tree mirrors into another
type SyncDefinition struct {
	SourceDirectory         string `json:"source_directory"`
	DestinationDirectory    string `json:"destination_directory"`
	IncludeSubFolders       bool   `json:"include_sub_folders"`
	DeleteAssetsNotInSource bool   `json:"delete_assets_not_in_source"`
}
