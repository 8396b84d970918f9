package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrDecode indica token malformado ou sem expiração legível.
	ErrDecode = errors.New("token: falha ao decodificar")
	// ErrExpired indica token com exp no passado.
	ErrExpired = errors.New("token: expirado")
)

// Result é o veredito do validador sobre um token.
type Result int

const (
	Valid Result = iota
	Expired
	Malformed
)

func (r Result) String() string {
	switch r {
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	default:
		return "malformed"
	}
}

// Err converte o resultado em erro; nil quando válido.
func (r Result) Err() error {
	switch r {
	case Valid:
		return nil
	case Expired:
		return ErrExpired
	default:
		return ErrDecode
	}
}

// Claims representa as informações lidas de um token emitido pela API.
// A assinatura não é verificada aqui: quem valida é o backend.
type Claims struct {
	Role               string `json:"role,omitempty"`
	FactoryReferenceID string `json:"factoryReferenceID,omitempty"`
	jwt.RegisteredClaims
}

var parser = jwt.NewParser()

// Decode lê as claims sem verificar assinatura.
func Decode(token string) (claims *Claims, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			claims = nil
			err = fmt.Errorf("%w: %v", ErrDecode, rec)
		}
	}()

	if token == "" {
		return nil, fmt.Errorf("%w: token vazio", ErrDecode)
	}

	out := &Claims{}
	if _, _, err := parser.ParseUnverified(token, out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if out.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: exp ausente", ErrDecode)
	}
	return out, nil
}

// Validate compara exp (segundos) com o instante informado.
// Expirado quando exp < now; nunca propaga panic.
func Validate(token string, now time.Time) Result {
	claims, err := Decode(token)
	if err != nil {
		return Malformed
	}
	if claims.ExpiresAt.Unix() < now.Unix() {
		return Expired
	}
	return Valid
}

// Validator aplica Validate com relógio injetável.
type Validator struct {
	now func() time.Time
}

// NewValidator cria validador com relógio real.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// NewValidatorWithClock permite fixar o relógio (testes e CLI).
func NewValidatorWithClock(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Check avalia o token no instante atual do relógio.
func (v *Validator) Check(token string) Result {
	return Validate(token, v.now())
}

// Now expõe o relógio usado pelo validador.
func (v *Validator) Now() time.Time {
	return v.now()
}

// Fingerprint resume o token para compor chaves sem guardá-lo em claro.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
