package authcore

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCreateAccountBootstrap(t *testing.T) {
	env := newTestEnv(t, nil)

	acct, err := env.engine.CreateAccount(context.Background(), CreateAccountRequest{
		Email:    " Owner@X.com ",
		Password: testPassword,
		Name:     "<b>Olivia</b>",
		Role:     RoleOwner,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.ID == "" || acct.Email != "owner@x.com" || acct.Role != RoleOwner {
		t.Fatalf("unexpected account: %+v", acct)
	}
	if acct.PasswordHash != "" {
		t.Fatalf("returned account must not carry the hash")
	}
	if acct.Name != "Olivia" {
		t.Fatalf("expected sanitized name, got %q", acct.Name)
	}
	if !acct.CreatedAt.Equal(env.clock.Now()) {
		t.Fatalf("unexpected creation time %s", acct.CreatedAt)
	}

	if _, err := env.engine.Authenticate(context.Background(), "owner@x.com", testPassword, desktop); err != nil {
		t.Fatalf("created account must be able to log in: %v", err)
	}
}

func TestCreateAccountDefaultsToViewer(t *testing.T) {
	env := newTestEnv(t, nil)

	acct, err := env.engine.CreateAccount(context.Background(), CreateAccountRequest{Email: "v@x.com", Password: testPassword})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if acct.Role != RoleViewer {
		t.Fatalf("expected viewer, got %s", acct.Role)
	}
}

func TestCreateAccountRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.seed(t, "taken@x.com", testPassword, RoleViewer)

	tests := []struct {
		name string
		req  CreateAccountRequest
		want error
	}{
		{"bad email", CreateAccountRequest{Email: "nope", Password: testPassword}, ErrValidation},
		{"weak password", CreateAccountRequest{Email: "n@x.com", Password: "short"}, ErrPasswordPolicy},
		{"unknown role", CreateAccountRequest{Email: "n@x.com", Password: testPassword, Role: "root"}, ErrRoleInvalid},
		{"duplicate", CreateAccountRequest{Email: "TAKEN@x.com", Password: testPassword}, ErrAccountExists},
		{"unknown creator", CreateAccountRequest{Email: "n@x.com", Password: testPassword, CreatedBy: "ghost"}, ErrPermissionDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.engine.CreateAccount(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateAccountRoleRules(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	creators := map[Role]Account{}
	for _, r := range Roles() {
		creators[r] = env.seed(t, string(r)+"@x.com", testPassword, r)
	}

	n := 0
	for _, creatorRole := range Roles() {
		for _, role := range Roles() {
			n++
			_, err := env.engine.CreateAccount(ctx, CreateAccountRequest{
				Email:     fmt.Sprintf("new%d@x.com", n),
				Password:  testPassword,
				Role:      role,
				CreatedBy: creators[creatorRole].ID,
			})
			allowed := creatorRole.AtLeast(RoleAdmin) && creatorRole.Outranks(role)
			if allowed && err != nil {
				t.Fatalf("%s creating %s: %v", creatorRole, role, err)
			}
			if !allowed && !errors.Is(err, ErrPermissionDenied) {
				t.Fatalf("%s creating %s: expected permission denied, got %v", creatorRole, role, err)
			}
		}
	}
}

func TestDeleteAccountRules(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	owner := env.seed(t, "owner@x.com", testPassword, RoleOwner)
	admin := env.seed(t, "admin@x.com", testPassword, RoleAdmin)
	admin2 := env.seed(t, "admin2@x.com", testPassword, RoleAdmin)
	editor := env.seed(t, "editor@x.com", testPassword, RoleEditor)
	viewer := env.seed(t, "viewer@x.com", testPassword, RoleViewer)

	denied := []struct {
		name          string
		actor, target string
	}{
		{"self", admin.ID, admin.ID},
		{"peer", admin.ID, admin2.ID},
		{"upward", admin.ID, owner.ID},
		{"below admin", editor.ID, viewer.ID},
		{"unknown actor", "ghost", viewer.ID},
		{"empty actor", "", viewer.ID},
	}
	for _, tt := range denied {
		if err := env.engine.DeleteAccount(ctx, tt.actor, tt.target); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("%s: expected permission denied, got %v", tt.name, err)
		}
	}

	if err := env.engine.DeleteAccount(ctx, admin.ID, "ghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := env.engine.DeleteAccount(ctx, admin.ID, editor.ID); err != nil {
		t.Fatalf("admin deleting editor: %v", err)
	}
	if err := env.engine.DeleteAccount(ctx, owner.ID, admin2.ID); err != nil {
		t.Fatalf("owner deleting admin: %v", err)
	}
	if _, err := env.store.GetByID(ctx, editor.ID); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("editor must be gone")
	}
	if env.engine.metrics.Value(MetricAccountDeleted) != 2 {
		t.Fatalf("expected two deletions counted")
	}
}

func TestUnlockAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "a@x.com", testPassword, RoleViewer)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		client := ClientContext{IP: fmt.Sprintf("10.0.0.%d", i), UserAgent: desktopUA}
		_, _ = env.engine.Authenticate(ctx, "a@x.com", "wrong", client)
	}
	if _, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, desktop); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected locked, got %v", err)
	}

	if err := env.engine.UnlockAccount(ctx, "A@x.com"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := env.engine.UnlockAccount(ctx, "a@x.com"); err != nil {
		t.Fatalf("unlock must be idempotent: %v", err)
	}
	other := ClientContext{IP: "10.0.2.1", UserAgent: desktopUA}
	if _, err := env.engine.Authenticate(ctx, "a@x.com", testPassword, other); err != nil {
		t.Fatalf("login after unlock: %v", err)
	}
	if err := env.engine.UnlockAccount(ctx, "bad"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
