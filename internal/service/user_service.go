package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/d60-Lab/gin-blog/internal/model"
	"github.com/d60-Lab/gin-blog/internal/repository"
)

// RegisterForm 注册表单
type RegisterForm struct {
	Username        string `form:"username" json:"username" validate:"required,alphanum,max=150"`
	Email           string `form:"email" json:"email" validate:"required,email,max=254"`
	Password        string `form:"password" json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `form:"password_confirm" json:"password_confirm" validate:"required,eqfield=Password"`
}

// UserService 账号服务
type UserService interface {
	Register(ctx context.Context, form RegisterForm) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	Get(ctx context.Context, id string) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	cost     int
}

// NewUserService cost 为 bcrypt 代价，<=0 时取默认值
func NewUserService(userRepo repository.UserRepository, cost int) UserService {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &userService{userRepo: userRepo, cost: cost}
}

func (s *userService) Register(ctx context.Context, form RegisterForm) (*model.User, error) {
	form.Username = strings.TrimSpace(form.Username)
	form.Email = strings.TrimSpace(form.Email)
	if err := validateStruct(form); err != nil {
		return nil, err
	}

	taken, err := s.userRepo.UsernameTaken(ctx, form.Username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fieldError("username", "A user with that username already exists.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &model.User{ID: uuid.New().String(), Username: form.Username, Email: form.Email, Password: string(hash)}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fieldError("username", "A user with that username already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *userService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	u, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *userService) Get(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound("user", id, err)
	}
	return u, nil
}
