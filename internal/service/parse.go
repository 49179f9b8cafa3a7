package service

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"caja/backend/internal/domain"
)

var (
	namePattern     = regexp.MustCompile(`^[A-Za-zÁÉÍÓÚáéíóúÑñÜü ]+$`)
	documentPattern = regexp.MustCompile(`^[0-9]+$`)
	amountStripper  = strings.NewReplacer("$", "", ",", "", ".", "", " ", "")
)

func parseQuantity(raw domain.FormValue, min int) (int, error) {
	qty, err := strconv.Atoi(strings.TrimSpace(raw.String()))
	if err != nil || qty < min {
		return 0, invalid("quantity", "la cantidad debe ser un entero mayor o igual a "+strconv.Itoa(min))
	}
	return qty, nil
}

func parsePrice(field string, raw domain.FormValue) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw.String()))
	if err != nil || !price.IsPositive() {
		return decimal.Zero, invalid(field, "el precio debe ser un número mayor que 0")
	}
	// Prices are stored with two decimals; anything finer would not round-trip.
	if !price.Equal(price.Round(2)) {
		return decimal.Zero, invalid(field, "el precio admite como máximo dos decimales")
	}
	return price, nil
}

// parseAmount reads a whole peso amount as typed in a cash form, so "$1.500"
// and "1,500" both mean 1500.
func parseAmount(field string, raw domain.FormValue) (int64, error) {
	cleaned := amountStripper.Replace(raw.String())
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil || amount < 1 {
		return 0, invalid(field, "el valor debe ser un número entero positivo")
	}
	return amount, nil
}

func requireText(field string, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(field, "el campo "+field+" es obligatorio")
	}
	return value, nil
}

type profileFields struct {
	name       string
	surname    string
	documentID string
	role       domain.Role
}

func validateProfileFields(name, surname, documentID, role string) (profileFields, error) {
	var (
		out profileFields
		err error
	)
	if out.name, err = requireText("name", name); err != nil {
		return out, err
	}
	if !namePattern.MatchString(out.name) {
		return out, invalid("name", "el nombre solo puede contener letras y espacios")
	}
	if out.surname, err = requireText("surname", surname); err != nil {
		return out, err
	}
	if !namePattern.MatchString(out.surname) {
		return out, invalid("surname", "el apellido solo puede contener letras y espacios")
	}
	if out.documentID, err = requireText("document_id", documentID); err != nil {
		return out, err
	}
	if !documentPattern.MatchString(out.documentID) {
		return out, invalid("document_id", "el documento solo puede contener números")
	}
	parsed, ok := domain.ParseRole(role)
	if !ok {
		return out, invalid("role", "rol inválido")
	}
	out.role = parsed
	return out, nil
}
