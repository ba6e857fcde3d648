package dto

import (
	"stockledger/internal/domain/material"
)

// LinkMaterialRequest is the body of PUT /materials/:id/link. A null itemId
// clears the link.
type LinkMaterialRequest struct {
	ItemID *string `json:"itemId"`
}

// AutoMapResponse summarizes an auto-mapping run.
type AutoMapResponse struct {
	Mapped  int                      `json:"mapped"`
	NoMatch int                      `json:"noMatch"`
	Errors  int                      `json:"errors"`
	Results []material.MappingResult `json:"results"`
}

// FromMappingResults counts results by status.
func FromMappingResults(results []material.MappingResult) AutoMapResponse {
	resp := AutoMapResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []material.MappingResult{}
	}
	for _, r := range results {
		switch r.Status {
		case material.MappingMapped:
			resp.Mapped++
		case material.MappingNoMatch:
			resp.NoMatch++
		case material.MappingError:
			resp.Errors++
		}
	}
	return resp
}

// SyncResponse summarizes a material sync run.
type SyncResponse struct {
	Updated int                   `json:"updated"`
	InSync  int                   `json:"inSync"`
	Errors  int                   `json:"errors"`
	Results []material.SyncResult `json:"results"`
}

// FromSyncResults counts results by status.
func FromSyncResults(results []material.SyncResult) SyncResponse {
	resp := SyncResponse{Results: results}
	if resp.Results == nil {
		resp.Results = []material.SyncResult{}
	}
	for _, r := range results {
		switch r.Status {
		case material.SyncUpdated:
			resp.Updated++
		case material.SyncInSync:
			resp.InSync++
		case material.SyncError:
			resp.Errors++
		}
	}
	return resp
}
