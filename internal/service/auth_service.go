package service

import (
	"context"
	"errors"
	"strings"

	"cortana-grid/internal/domain"
	"cortana-grid/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 登录与密码管理
type AuthService interface {
	Login(ctx context.Context, username, password string) (*domain.User, error)
	ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error
}

type authService struct {
	users  repository.UsersRepository
	logger *zap.Logger
}

func NewAuthService(users repository.UsersRepository, logger *zap.Logger) AuthService {
	return &authService{users: users, logger: logger}
}

// Login 校验用户名密码。失败统一返回"用户名或密码错误"，不泄露账号是否存在。
func (s *authService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("请填写用户名和密码")
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err == repository.ErrNotFound {
		s.logger.Warn("登录失败尝试", zap.String("username", username))
		return nil, errors.New("用户名或密码错误")
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.logger.Warn("登录失败尝试", zap.String("username", username))
		return nil, errors.New("用户名或密码错误")
	}

	if !u.IsActive {
		return nil, errors.New("账户已被禁用，请联系管理员")
	}

	s.logger.Info("用户登录成功", zap.String("username", username))
	return u, nil
}

// ChangePassword 修改本人密码：校验原密码，更新后清除强制改密标志
func (s *authService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return errors.New("请完整填写所有字段")
	}
	if len(newPassword) < 6 {
		return errors.New("新密码长度至少为6位")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err == repository.ErrNotFound {
		return errors.New("用户不存在")
	}
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return errors.New("原密码不正确")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash), false); err != nil {
		return err
	}

	s.logger.Info("用户修改密码", zap.String("username", u.Username))
	return nil
}
