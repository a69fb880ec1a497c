package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/lpg-storefront/internal/config"
	"github.com/your-org/lpg-storefront/internal/pkg/apperror"
	"github.com/your-org/lpg-storefront/internal/pkg/auth"
	"github.com/your-org/lpg-storefront/internal/pkg/logger"
	"github.com/your-org/lpg-storefront/internal/pkg/testdb"
)

func newTestService(t *testing.T) (*Service, *auth.JWTManager) {
	t.Helper()
	db := testdb.New(t, &User{}, &Address{})
	cfg := &config.Config{
		App: config.AppConfig{Name: "lpg-test"},
		JWT: config.JWTConfig{
			Secret:             "0123456789abcdef0123456789abcdef",
			AccessTokenExpiry:  time.Hour,
			RefreshTokenExpiry: 24 * time.Hour,
		},
		Security: config.SecurityConfig{BcryptCost: 4},
	}
	jwt := auth.NewJWTManager(cfg)
	return NewService(db, jwt, cfg, logger.Discard()), jwt
}

func register(t *testing.T, s *Service, email string) *AuthResponse {
	t.Helper()
	resp, err := s.Register(context.Background(), &RegisterRequest{
		Email:           email,
		Password:        "Tabung12kg",
		ConfirmPassword: "Tabung12kg",
		FullName:        "Siti Rahma",
	})
	require.NoError(t, err)
	return resp
}

func TestRegisterAndLogin(t *testing.T) {
	s, jwt := newTestService(t)
	ctx := context.Background()

	resp := register(t, s, "  Siti@Example.com ")
	assert.Equal(t, "siti@example.com", resp.User.Email)
	assert.Equal(t, RoleCustomer, resp.User.Role)
	assert.NotNil(t, resp.User.LastLoginAt)

	claims, err := jwt.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, "customer", claims.Role)

	login, err := s.Login(ctx, &LoginRequest{Email: "SITI@example.com", Password: "Tabung12kg"})
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, login.User.ID)

	_, err = s.Login(ctx, &LoginRequest{Email: "siti@example.com", Password: "Wrong12345"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = s.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "Tabung12kg"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	refreshed, err := s.RefreshToken(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	_, err = s.RefreshToken(ctx, login.AccessToken)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))
}

func TestRegister_Rejections(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	register(t, s, "budi@example.com")

	_, err := s.Register(ctx, &RegisterRequest{Email: "budi@example.com", Password: "Tabung12kg", ConfirmPassword: "Tabung12kg", FullName: "Budi"})
	var conflict *apperror.ConflictError
	assert.ErrorAs(t, err, &conflict)

	_, err = s.Register(ctx, &RegisterRequest{Email: "x@example.com", Password: "Tabung12kg", ConfirmPassword: "Tabung12kh", FullName: "X"})
	assert.True(t, apperror.IsValidation(err))

	_, err = s.Register(ctx, &RegisterRequest{Email: "y@example.com", Password: "weak", ConfirmPassword: "weak", FullName: "Y"})
	assert.True(t, apperror.IsValidation(err))
}

func TestDeactivatedUserCannotLogIn(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	admin, err := s.EnsureUser(ctx, "admin@example.com", "Kantor2024X", "Admin", RoleAdmin)
	require.NoError(t, err)
	again, err := s.EnsureUser(ctx, "admin@example.com", "Other12345", "Admin", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, admin.ID, again.ID)

	customer := register(t, s, "dewi@example.com")

	require.NoError(t, s.UpdateUserStatus(ctx, customer.User.ID, &UserStatusUpdateRequest{IsActive: false}, admin.ID))
	_, err = s.Login(ctx, &LoginRequest{Email: "dewi@example.com", Password: "Tabung12kg"})
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	_, err = s.RefreshToken(ctx, customer.RefreshToken)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))

	err = s.UpdateUserStatus(ctx, admin.ID, &UserStatusUpdateRequest{IsActive: false}, admin.ID)
	assert.True(t, apperror.IsValidation(err))
	assert.True(t, apperror.IsNotFound(s.UpdateUserStatus(ctx, 999, &UserStatusUpdateRequest{IsActive: true}, admin.ID)))
}

func TestStaffAccounts(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	op, err := s.CreateStaff(ctx, &CreateStaffRequest{Email: "op@example.com", Password: "Depot12345", FullName: "Operator", Role: RoleOperator}, 1)
	require.NoError(t, err)
	assert.True(t, op.IsStaff())

	_, err = s.CreateStaff(ctx, &CreateStaffRequest{Email: "c@example.com", Password: "Depot12345", FullName: "C", Role: RoleCustomer}, 1)
	assert.True(t, apperror.IsValidation(err))

	register(t, s, "rina@example.com")
	list, err := s.ListUsers(ctx, &UserListRequest{Page: 1, Limit: 10, Role: RoleOperator})
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, "op@example.com", list.Users[0].Email)
	assert.Equal(t, int64(1), list.Pagination.Total)

	list, err = s.ListUsers(ctx, &UserListRequest{Page: 1, Limit: 10, Search: "RINA"})
	require.NoError(t, err)
	assert.Len(t, list.Users, 1)
}

func TestAddresses(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, s, "andi@example.com").User

	home, err := s.CreateAddress(ctx, u.ID, &CreateAddressRequest{Label: "Home", RecipientName: "Andi", Phone: "0812", AddressLine: "Jl. Braga 5", City: "Bandung"})
	require.NoError(t, err)
	assert.True(t, home.IsDefault, "first address becomes default")

	shop, err := s.CreateAddress(ctx, u.ID, &CreateAddressRequest{Label: "Warung", RecipientName: "Andi", Phone: "0812", AddressLine: "Jl. Riau 9", City: "Bandung", IsDefault: true})
	require.NoError(t, err)

	list, err := s.ListAddresses(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, shop.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.False(t, list[1].IsDefault)

	_, err = s.GetAddress(ctx, u.ID+1, home.ID)
	assert.True(t, apperror.IsNotFound(err))

	got, err := s.GetAddress(ctx, u.ID, home.ID)
	require.NoError(t, err)
	addr := got.ToOrderAddress()
	assert.Equal(t, "Jl. Braga 5", addr.AddressLine)
	assert.False(t, addr.IsZero())

	_, err = s.CreateAddress(ctx, u.ID, &CreateAddressRequest{RecipientName: " ", Phone: "1", AddressLine: "x", City: "y"})
	assert.True(t, apperror.IsValidation(err))

	profile, err := s.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, profile.Addresses, 2)
}
