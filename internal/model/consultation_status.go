package model

import (
	"fmt"
	"strings"
)

type ConsultationStatus string

const (
	ConsultationStatusPending    ConsultationStatus = "pending"     // Ожидает подтверждения юриста
	ConsultationStatusConfirmed  ConsultationStatus = "confirmed"   // Подтверждена
	ConsultationStatusInProgress ConsultationStatus = "in_progress" // Идёт
	ConsultationStatusCompleted  ConsultationStatus = "completed"   // Завершена
	ConsultationStatusCancelled  ConsultationStatus = "cancelled"   // Отменена
)

// ParseConsultationStatus переводит строку с границы системы в статус
func ParseConsultationStatus(s string) (ConsultationStatus, error) {
	status := ConsultationStatus(strings.ToLower(strings.TrimSpace(s)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown consultation status %q", s)
	}
	return status, nil
}

// Valid проверяет, что значение входит в перечисление
func (s ConsultationStatus) Valid() bool {
	switch s {
	case ConsultationStatusPending,
		ConsultationStatusConfirmed,
		ConsultationStatusInProgress,
		ConsultationStatusCompleted,
		ConsultationStatusCancelled:
		return true
	}
	return false
}

// IsActive true для статусов, занимающих юриста
func (s ConsultationStatus) IsActive() bool {
	return s == ConsultationStatusConfirmed || s == ConsultationStatusInProgress
}

// IsTerminal true для завершённых и отменённых
func (s ConsultationStatus) IsTerminal() bool {
	return s == ConsultationStatusCompleted || s == ConsultationStatusCancelled
}

func (s ConsultationStatus) String() string { return string(s) }

type ConsultationType string

const (
	ConsultationTypeEmergency ConsultationType = "emergency" // Срочная, без слота
	ConsultationTypeScheduled ConsultationType = "scheduled" // По расписанию
)

// ParseConsultationType переводит строку с границы системы в тип
func ParseConsultationType(s string) (ConsultationType, error) {
	t := ConsultationType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown consultation type %q", s)
	}
	return t, nil
}

func (t ConsultationType) Valid() bool {
	return t == ConsultationTypeEmergency || t == ConsultationTypeScheduled
}

func (t ConsultationType) String() string { return string(t) }
