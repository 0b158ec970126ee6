package core

import (
	"context"
	"errors"
	"fmt"

	"housingcore/internal/validation"
	"housingcore/pkg/domain"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash stored in Person.PasswordHash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(p Person, password string) error {
	if p.PasswordHash == "" {
		return domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return domain.ErrInvalidCredentials
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidCredentials, err)
	}
	return nil
}

// FetchByUniqueID resolves a person by id. Ids match regardless of case.
// A store that cannot be read reports no match and logs the error.
func (s *Service) FetchByUniqueID(ctx context.Context, id string) (Person, bool) {
	var (
		p  Person
		ok bool
	)
	err := s.read(ctx, "fetch_person", func(view domain.TransactionView) error {
		p, ok = view.FindPerson(domain.PersonKey(id))
		return nil
	})
	if err != nil {
		s.logger.Error("person lookup failed", "person_id", id, "error", err)
		return Person{}, false
	}
	return p, ok
}

// FetchByName resolves a person by name, ignoring case.
func (s *Service) FetchByName(ctx context.Context, name string) (Person, bool) {
	var (
		p  Person
		ok bool
	)
	err := s.read(ctx, "fetch_person_by_name", func(view domain.TransactionView) error {
		p, ok = view.FindPersonByName(name)
		return nil
	})
	if err != nil {
		s.logger.Error("person lookup failed", "name", name, "error", err)
		return Person{}, false
	}
	return p, ok
}

// Authenticate verifies a password and returns the matching identity.
// Unknown ids and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, id, password string) (Person, error) {
	p, ok := s.FetchByUniqueID(ctx, id)
	if !ok {
		return Person{}, domain.ErrInvalidCredentials
	}
	if err := checkPassword(p, password); err != nil {
		s.logger.Info("authentication rejected", "person_id", p.ID)
		return Person{}, err
	}
	return p, nil
}

// RegisterPerson stores a new identity, hashing password when one is given.
// The id is upper-cased and the record must pass the same checks the CSV
// loader applies.
func (s *Service) RegisterPerson(ctx context.Context, p Person, password string) (Person, Result, error) {
	p.ID = domain.PersonKey(p.ID)
	if p.Role == "" {
		p.Role = domain.RoleApplicant
	}
	if err := validation.Struct(s.validate, p); err != nil {
		return Person{}, Result{}, fmt.Errorf("person %s: %w", p.ID, err)
	}
	if password != "" {
		hash, err := HashPassword(password)
		if err != nil {
			return Person{}, Result{}, err
		}
		p.PasswordHash = hash
	}
	var created Person
	res, err := s.mutate(ctx, "register_person", p.ID, func(tx domain.Transaction) (string, error) {
		var err error
		created, err = tx.CreatePerson(p)
		return created.ID, err
	})
	return created, res, err
}

// ChangePassword replaces a password after verifying the current one.
func (s *Service) ChangePassword(ctx context.Context, id, current, next string) (Result, error) {
	if _, err := s.Authenticate(ctx, id, current); err != nil {
		return Result{}, err
	}
	hash, err := HashPassword(next)
	if err != nil {
		return Result{}, err
	}
	return s.mutate(ctx, "change_password", id, func(tx domain.Transaction) (string, error) {
		_, err := tx.UpdatePerson(id, func(p *Person) error {
			p.PasswordHash = hash
			return nil
		})
		return id, err
	})
}
