package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cortana-grid/internal/auth"
	"cortana-grid/internal/config"
	"cortana-grid/internal/domain"
	httpapi "cortana-grid/internal/http"
	"cortana-grid/internal/repository"
	"cortana-grid/internal/service"
	"cortana-grid/internal/store"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	db, err := config.NewPostgresDB(&cfg.Database)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	kv := store.NewRedisKV(redisClient)

	if err := bootstrap(db, logger); err != nil {
		logger.Fatal("初始数据写入失败", zap.Error(err))
	}

	usersRepo := repository.NewPostgresUsersRepository(db)
	rolesRepo := repository.NewPostgresRolesRepository(db)
	gridsRepo := repository.NewPostgresGridsRepository(db)
	buildingsRepo := repository.NewPostgresBuildingsRepository(db)
	personsRepo := repository.NewPostgresPersonsRepository(db)
	settingsRepo := repository.NewPostgresSettingsRepository(db)

	guard := service.NewGuard(buildingsRepo, personsRepo, logger)
	authService := service.NewAuthService(usersRepo, logger)
	personService := service.NewPersonService(personsRepo, buildingsRepo, logger)
	buildingService := service.NewBuildingService(buildingsRepo, gridsRepo, logger)
	gridService := service.NewGridService(gridsRepo, logger)
	userService := service.NewUserService(usersRepo, bcryptHasher, logger)
	settingsService := service.NewSettingsService(settingsRepo, logger)
	rolePermService := service.NewRolePermissionService(rolesRepo, logger)
	importExportService := service.NewImportExportService(personsRepo, buildingsRepo, gridsRepo, guard, logger)

	policy := auth.FailClosed
	if cfg.PermissionFailOpen {
		policy = auth.FailOpen
	}
	sessions := httpapi.NewSessionManager(kv, cfg.Session.CookieName,
		time.Duration(cfg.Session.TTLHours)*time.Hour)
	authn := httpapi.NewAuthenticator(sessions, usersRepo, rolesRepo, policy, logger)

	router := httpapi.NewRouter(logger)
	router.RegisterAuthRoutes(httpapi.NewAuthHandler(authn, authService, logger))
	router.RegisterPersonRoutes(httpapi.NewPersonHandler(authn, personService, guard, logger))
	router.RegisterBuildingRoutes(httpapi.NewBuildingHandler(authn, buildingService, guard, logger))
	router.RegisterGridRoutes(httpapi.NewGridHandler(authn, gridService, logger))
	router.RegisterUserRoutes(httpapi.NewUserHandler(authn, userService, logger))
	router.RegisterSettingsRoutes(httpapi.NewSettingsHandler(authn, settingsService, rolePermService, logger))
	router.RegisterImportExportRoutes(httpapi.NewImportExportHandler(authn, importExportService, logger))

	srv := service.NewServer(cfg.HTTP.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("收到退出信号", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP 服务异常退出", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Log.Format == "console" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func bcryptHasher(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// bootstrap 启动种子数据：三个内置角色、默认权限、admin 账号、基础设置。
// 全部 ON CONFLICT DO NOTHING，重复启动不会覆盖运维改过的配置。
func bootstrap(db *sql.DB, logger *zap.Logger) error {
	for _, role := range []string{domain.RoleSuperAdmin, domain.RoleCommunityAdmin, domain.RoleGridUser} {
		if _, err := db.Exec(
			`INSERT INTO roles (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, role); err != nil {
			return err
		}
		for _, perm := range auth.DefaultRolePermissions[role] {
			if _, err := db.Exec(
				`INSERT INTO role_permissions (role_id, permission)
				 SELECT id, $2 FROM roles WHERE name = $1
				 ON CONFLICT DO NOTHING`, role, perm); err != nil {
				return err
			}
		}
	}

	// admin 初始密码固定且强制首登修改
	hash, err := bcryptHasher(service.DefaultUserPassword)
	if err != nil {
		return err
	}
	res, err := db.Exec(
		`INSERT INTO users (username, password_hash, full_name, is_active, must_change_password, page_size)
		 VALUES ('admin', $1, '系统管理员', TRUE, TRUE, $2)
		 ON CONFLICT (username) DO NOTHING`, hash, domain.DefaultPageSize)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		logger.Info("已创建初始管理员账号", zap.String("username", "admin"))
	}
	if _, err := db.Exec(
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT u.id, r.id FROM users u, roles r
		 WHERE u.username = 'admin' AND r.name = $1
		 ON CONFLICT DO NOTHING`, domain.RoleSuperAdmin); err != nil {
		return err
	}

	seedSettings := map[string]string{
		domain.SettingCommunityName:          domain.DefaultCommunityName,
		domain.SettingDefaultPageSize:        "20",
		domain.SettingShowDefaultCredentials: "0",
	}
	for key, value := range seedSettings {
		if _, err := db.Exec(
			`INSERT INTO settings (key, value) VALUES ($1, $2) ON CONFLICT (key) DO NOTHING`,
			key, value); err != nil {
			return err
		}
	}
	return nil
}
