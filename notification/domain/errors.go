package domain

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotFound cobre tanto id inexistente quanto id de outro usuário.
	// Os dois casos são indistinguíveis para quem chama.
	ErrNotFound     = errors.New("notification not found")
	ErrInvalidInput = errors.New("invalid input")
)
