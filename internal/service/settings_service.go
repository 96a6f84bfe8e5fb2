package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// GeneralSettings 系统通用设置
type GeneralSettings struct {
	CommunityName          string `json:"community_name"`
	DefaultPageSize        int    `json:"default_page_size"`
	ShowDefaultCredentials bool   `json:"show_default_credentials"`
}

// SettingsService 系统全局设置
type SettingsService interface {
	CommunityName(ctx context.Context) (string, error)
	General(ctx context.Context) (*GeneralSettings, error)
	SaveGeneral(ctx context.Context, p *auth.Principal, in GeneralSettings) error
}

type settingsService struct {
	settings repository.SettingsRepository
	logger   *zap.Logger
}

func NewSettingsService(settings repository.SettingsRepository, logger *zap.Logger) SettingsService {
	return &settingsService{settings: settings, logger: logger}
}

func (s *settingsService) CommunityName(ctx context.Context) (string, error) {
	return s.settings.Get(ctx, domain.SettingCommunityName, domain.DefaultCommunityName)
}

func (s *settingsService) General(ctx context.Context) (*GeneralSettings, error) {
	name, err := s.settings.Get(ctx, domain.SettingCommunityName, domain.DefaultCommunityName)
	if err != nil {
		return nil, err
	}
	sizeStr, err := s.settings.Get(ctx, domain.SettingDefaultPageSize, strconv.Itoa(domain.DefaultPageSize))
	if err != nil {
		return nil, err
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil {
		size = domain.DefaultPageSize
	}
	show, err := s.settings.Get(ctx, domain.SettingShowDefaultCredentials, "0")
	if err != nil {
		return nil, err
	}
	return &GeneralSettings{
		CommunityName:          name,
		DefaultPageSize:        size,
		ShowDefaultCredentials: show == "1",
	}, nil
}

// SaveGeneral 保存通用设置。社区名必填且 ≤100 字符；
// 默认分页大小只接受 10~100，越界的输入静默忽略。
func (s *settingsService) SaveGeneral(ctx context.Context, p *auth.Principal, in GeneralSettings) error {
	name := strings.TrimSpace(in.CommunityName)
	if name == "" {
		return errors.New("社区名称不能为空")
	}
	if utf8.RuneCountInString(name) > 100 {
		return errors.New("社区名称不能超过100个字符")
	}
	if err := s.settings.Set(ctx, domain.SettingCommunityName, name); err != nil {
		return err
	}

	if in.DefaultPageSize >= 10 && in.DefaultPageSize <= 100 {
		if err := s.settings.Set(ctx, domain.SettingDefaultPageSize, strconv.Itoa(in.DefaultPageSize)); err != nil {
			return err
		}
	}

	show := "0"
	if in.ShowDefaultCredentials {
		show = "1"
	}
	if err := s.settings.Set(ctx, domain.SettingShowDefaultCredentials, show); err != nil {
		return err
	}

	s.logger.Info("保存通用设置",
		zap.String("username", p.Username),
		zap.String("community_name", name))
	return nil
}
