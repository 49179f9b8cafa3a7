package domain

import "strings"

type Role string

const (
	RoleAdministrator Role = "administrador"
	RoleSalesperson   Role = "vendedor"
)

func ParseRole(raw string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	return role, role.Valid()
}

func (r Role) Valid() bool {
	return r == RoleAdministrator || r == RoleSalesperson
}

type Category string

const (
	CategoryMerchandise Category = "Mercancia"
	CategoryPurchase    Category = "Compra"
)

func ParseCategory(raw string) (Category, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range []Category{CategoryMerchandise, CategoryPurchase} {
		if strings.EqualFold(trimmed, string(c)) {
			return c, true
		}
	}
	return "", false
}

// View describes the dashboard a client renders for a session.
type View struct {
	Name           string   `json:"name"`
	Title          string   `json:"title"`
	Sections       []string `json:"sections"`
	DefaultSection string   `json:"default_section,omitempty"`
}

const (
	ViewAdmin       = "admin-dashboard"
	ViewSalesperson = "salesperson-dashboard"
	ViewLogin       = "login"
)

// DashboardFor maps a role to its view. Anything outside the enum lands on
// the login view.
func DashboardFor(role Role) View {
	switch role {
	case RoleAdministrator:
		return View{
			Name:           ViewAdmin,
			Title:          "Panel de Administración",
			Sections:       []string{"usuarios", "productos", "ventas", "reportes"},
			DefaultSection: "usuarios",
		}
	case RoleSalesperson:
		return View{
			Name:           ViewSalesperson,
			Title:          "Panel de Vendedor",
			Sections:       []string{"ventas"},
			DefaultSection: "ventas",
		}
	default:
		return View{Name: ViewLogin, Title: "Iniciar Sesión", Sections: []string{}}
	}
}
