package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"onrent-backend/internal/domain"
)

// Seed is the fixture file accepted by LoadSeed. Catalog data is owned
// elsewhere, so the memory driver needs it supplied up front.
type Seed struct {
	Users []struct {
		ID    int32       `yaml:"id"`
		Email string      `yaml:"email"`
		Name  string      `yaml:"name"`
		Role  domain.Role `yaml:"role"`
	} `yaml:"users"`
	Products []struct {
		ID       int32 `yaml:"id"`
		OwnerID  int32 `yaml:"owner_id"`
		Variants []struct {
			ID  int32  `yaml:"id"`
			SKU string `yaml:"sku"`
		} `yaml:"variants"`
	} `yaml:"products"`
}

// LoadSeed reads a YAML fixture file into the store.
func (s *Store) LoadSeed(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	for _, u := range seed.Users {
		s.AddUser(domain.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role})
	}
	for _, p := range seed.Products {
		s.AddProduct(p.ID, p.OwnerID)
		for _, v := range p.Variants {
			s.AddVariant(domain.Variant{ID: v.ID, ProductID: p.ID, OwnerID: p.OwnerID, SKU: v.SKU, IsAvailable: true})
		}
	}
	return nil
}

func (s *Store) AddUser(u domain.User) domain.User {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	u.ID = s.data.claimID(u.ID)
	if u.Role == "" {
		u.Role = domain.RoleCustomer
	}
	s.data.users[u.ID] = u
	return u
}

// AddVariant registers a catalog variant; a zero ID gets the next free one.
// AddVariant registers the variant's product for its owner unless the
// product is already known.
func (s *Store) AddVariant(v domain.Variant) domain.Variant {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	v.ID = s.data.claimID(v.ID)
	s.data.variants[v.ID] = v
	if _, ok := s.data.products[v.ProductID]; !ok && v.ProductID > 0 {
		s.data.products[v.ProductID] = v.OwnerID
	}
	return v
}

func (s *Store) AddProduct(id, ownerID int32) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()
	s.data.products[id] = ownerID
}

func (d *dataset) claimID(id int32) int32 {
	if id == 0 {
		return d.nextID()
	}
	if id > d.seq {
		d.seq = id
	}
	return id
}
