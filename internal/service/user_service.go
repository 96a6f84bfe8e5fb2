package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
)

// DefaultUserPassword 管理员新建账号的初始密码，首次登录强制修改
const DefaultUserPassword = "a12345678"

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateRandomPassword 强随机密码（大小写字母 + 数字）
func generateRandomPassword(length int) (string, error) {
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", err
		}
		b[i] = passwordAlphabet[n.Int64()]
	}
	return string(b), nil
}

// UserService 系统用户管理
type UserService interface {
	List(ctx context.Context) ([]*domain.User, error)
	ListActive(ctx context.Context) ([]*domain.User, error)
	Create(ctx context.Context, p *auth.Principal, username, fullName, phone string, roleNames []string) (string, error)
	ToggleActive(ctx context.Context, p *auth.Principal, userID int64) (string, error)
	ResetPassword(ctx context.Context, p *auth.Principal, userID int64) (string, error)
	UpdateProfile(ctx context.Context, p *auth.Principal, fullName, phone string, pageSize int, preferredCSS string) error
}

type userService struct {
	users  repository.UsersRepository
	hasher PasswordHasher
	logger *zap.Logger
}

// PasswordHasher 密码哈希函数（测试替身用）
type PasswordHasher func(password string) (string, error)

func NewUserService(users repository.UsersRepository, hasher PasswordHasher, logger *zap.Logger) UserService {
	return &userService{users: users, hasher: hasher, logger: logger}
}

func (s *userService) List(ctx context.Context) ([]*domain.User, error) {
	return s.users.List(ctx)
}

func (s *userService) ListActive(ctx context.Context) ([]*domain.User, error) {
	return s.users.ListActive(ctx)
}

// Create 新建账号：初始密码固定，首次登录强制修改。
// 超级管理员角色不允许通过管理界面分配。
func (s *userService) Create(ctx context.Context, p *auth.Principal, username, fullName, phone string, roleNames []string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(roleNames) == 0 {
		return "", errors.New("用户名和角色为必填项")
	}
	for _, name := range roleNames {
		if name == domain.RoleSuperAdmin {
			return "", errors.New("不允许通过此界面分配超级管理员角色")
		}
	}

	hash, err := s.hasher(DefaultUserPassword)
	if err != nil {
		return "", err
	}

	u := &domain.User{
		Username:           username,
		PasswordHash:       hash,
		IsActive:           true,
		MustChangePassword: true,
		PageSize:           domain.DefaultPageSize,
	}
	if fullName != "" {
		u.FullName.String, u.FullName.Valid = fullName, true
	}
	if phone != "" {
		u.Phone.String, u.Phone.Valid = phone, true
	}

	if _, err := s.users.Create(ctx, u, roleNames); err != nil {
		if repository.IsUniqueViolation(err, repository.ConstraintUsername) {
			return "", errors.New("用户名已存在，请选择其他用户名")
		}
		return "", err
	}

	s.logger.Info("新增用户",
		zap.String("operator", p.Username),
		zap.String("username", username),
		zap.Strings("roles", roleNames))
	return fmt.Sprintf("用户 \"%s\" 添加成功！默认密码：%s（请尽快告知用户修改）", username, DefaultUserPassword), nil
}

// ToggleActive 启用/禁用账号。不能操作自己。
func (s *userService) ToggleActive(ctx context.Context, p *auth.Principal, userID int64) (string, error) {
	if userID == p.ID {
		return "", errors.New("不能禁用或启用自己的账户")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err == repository.ErrNotFound {
		return "", errors.New("用户不存在")
	}
	if err != nil {
		return "", err
	}

	newActive := !u.IsActive
	if err := s.users.SetActive(ctx, userID, newActive); err != nil {
		return "", err
	}

	action := "禁用"
	if newActive {
		action = "启用"
	}
	s.logger.Info("切换用户状态",
		zap.String("operator", p.Username),
		zap.String("username", u.Username),
		zap.String("action", action))
	return fmt.Sprintf("用户 \"%s\" 已%s", u.Username, action), nil
}

// ResetPassword 重置为随机 12 位密码并强制下次登录修改，返回明文给操作者转告
func (s *userService) ResetPassword(ctx context.Context, p *auth.Principal, userID int64) (string, error) {
	if userID == p.ID {
		return "", errors.New("请通过\"修改密码\"功能更改自己的密码")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err == repository.ErrNotFound {
		return "", errors.New("用户不存在")
	}
	if err != nil {
		return "", err
	}

	newPassword, err := generateRandomPassword(12)
	if err != nil {
		return "", err
	}
	hash, err := s.hasher(newPassword)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash, true); err != nil {
		return "", err
	}

	s.logger.Info("重置用户密码",
		zap.String("operator", p.Username),
		zap.String("username", u.Username))
	return newPassword, nil
}

// UpdateProfile 更新本人设置
func (s *userService) UpdateProfile(ctx context.Context, p *auth.Principal, fullName, phone string, pageSize int, preferredCSS string) error {
	if pageSize < 10 || pageSize > 100 {
		pageSize = domain.DefaultPageSize
	}
	if err := s.users.UpdateProfile(ctx, p.ID, fullName, phone, pageSize, preferredCSS); err != nil {
		return err
	}
	s.logger.Info("更新个人设置", zap.String("username", p.Username))
	return nil
}
