package storage

import (
	"time"

	"github.com/LJTian/InspireHub/internal/errs"
)

// Source 描述一个数据源，例如 devpost / behance / dribbble
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EnsureSource 确保某个数据源存在
func (s *Store) EnsureSource(code, name, baseURL string) (*Source, error) {
	src := &Source{}
	if err := s.DB.Where("code = ?", code).First(src).Error; err == nil {
		return src, nil
	}

	src = &Source{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// ListSources 返回全部数据源，按 code 排序
func (s *Store) ListSources() ([]Source, error) {
	var list []Source
	if err := s.DB.Order("code ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// SetSourceStatus 启用或停用一个数据源
func (s *Store) SetSourceStatus(code, status string) error {
	if status != "active" && status != "disabled" {
		return errs.Errorf(errs.KindConflict, "invalid source status %q", status)
	}
	res := s.DB.Model(&Source{}).Where("code = ?", code).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errs.Errorf(errs.KindNotFound, "source %s not found", code)
	}
	return nil
}

// ActiveSourceCodes 返回所有启用状态的数据源 code，
// 被停用的源会被采集编排器跳过
func (s *Store) ActiveSourceCodes() map[string]bool {
	var list []Source
	if err := s.DB.Where("status = ?", "active").Find(&list).Error; err != nil {
		return nil
	}
	out := make(map[string]bool, len(list))
	for _, src := range list {
		out[src.Code] = true
	}
	return out
}
