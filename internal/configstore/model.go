// Package configstore is the read-only boundary onto the external
// FilterConfiguration system of record (owned by the admin dashboard,
// out of scope per spec §1). It exposes filterconfig.Store.
package configstore

import (
	"encoding/json"
	"strings"
	"time"

	"storefront-query-engine/internal/domain"

	"gorm.io/datatypes"
)

// Row is the GORM model mirroring domain.FilterConfiguration, mapped onto
// the filter_configurations table the admin dashboard owns.
type Row struct {
	ID                 string         `gorm:"primaryKey;column:id"`
	Shop               string         `gorm:"column:shop;index"`
	Version            int            `gorm:"column:version"`
	Status             string         `gorm:"column:status"`
	DeploymentChannel  string         `gorm:"column:deployment_channel"`
	TargetScope        string         `gorm:"column:target_scope"`
	AllowedCollections datatypes.JSON `gorm:"column:allowed_collections"`
	Settings           datatypes.JSON `gorm:"column:settings"`
	Options            datatypes.JSON `gorm:"column:options"`
	CreatedAt          time.Time      `gorm:"column:created_at"`
	UpdatedAt          time.Time      `gorm:"column:updated_at"`
}

// TableName pins the GORM table name, matching the teacher's model convention.
func (Row) TableName() string { return "filter_configurations" }

// ToDomain decodes a Row into a domain.FilterConfiguration, normalizing
// status/scope fields to lowercase per spec §9 open question 1.
func (r Row) ToDomain() *domain.FilterConfiguration {
	cfg := &domain.FilterConfiguration{
		ID:                r.ID,
		Version:           r.Version,
		Status:            strings.ToLower(strings.TrimSpace(r.Status)),
		DeploymentChannel: strings.ToLower(strings.TrimSpace(r.DeploymentChannel)),
		TargetScope:       strings.ToLower(strings.TrimSpace(r.TargetScope)),
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}

	decodeJSON(r.AllowedCollections, &cfg.AllowedCollections)
	decodeJSON(r.Settings, &cfg.Settings)

	var options []domain.FilterOption
	decodeJSON(r.Options, &options)
	for i := range options {
		options[i].Status = strings.ToLower(strings.TrimSpace(options[i].Status))
		options[i].TargetScope = strings.ToLower(strings.TrimSpace(options[i].TargetScope))
	}
	cfg.Options = options

	return cfg
}

func decodeJSON(raw datatypes.JSON, out interface{}) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}
