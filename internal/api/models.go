package api

import (
	"github.com/Brandon-Online01/w-f-sub001/internal/session"
)

// StatusSuccess é o status devolvido pelo backend em login aceito.
const StatusSuccess = "Success"

// Credentials é o corpo de POST /auth.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse é a resposta de POST /auth.
type AuthResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	User    *session.User `json:"user"`
	Token   string        `json:"token"`
}

// Component é uma peça produzida na fábrica.
type Component struct {
	UID         int64   `json:"uid"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Code        string  `json:"code,omitempty"`
	Colour      string  `json:"colour,omitempty"`
	Weight      float64 `json:"weight,omitempty"`
	Photo       string  `json:"photo,omitempty"`
	Status      string  `json:"status,omitempty"`
}

// Mould é um molde de injeção.
type Mould struct {
	UID          int64   `json:"uid"`
	Name         string  `json:"name"`
	SerialNumber string  `json:"serialNumber,omitempty"`
	Cavities     int     `json:"cavities,omitempty"`
	CycleTime    float64 `json:"cycleTime,omitempty"`
	Status       string  `json:"status,omitempty"`
}

// Machine é uma máquina monitorada.
type Machine struct {
	UID           int64  `json:"uid"`
	Name          string `json:"name"`
	MachineNumber string `json:"machineNumber,omitempty"`
	Type          string `json:"type,omitempty"`
	MacAddress    string `json:"macAddress,omitempty"`
	Status        string `json:"status,omitempty"`
}

// StaffUser é um colaborador listado na administração.
type StaffUser struct {
	UID                int64   `json:"uid"`
	Name               string  `json:"name"`
	Surname            string  `json:"surname,omitempty"`
	Email              string  `json:"email"`
	Role               string  `json:"role,omitempty"`
	Status             string  `json:"status,omitempty"`
	Photo              string  `json:"photo,omitempty"`
	FactoryReferenceID *string `json:"factoryReferenceID,omitempty"`
}

// Factory é uma planta selecionável no seletor de fábrica.
type Factory struct {
	UID                int64  `json:"uid"`
	Name               string `json:"name"`
	FactoryReferenceID string `json:"factoryReferenceID"`
	Address            string `json:"address,omitempty"`
	Status             string `json:"status,omitempty"`
}
