// seed inserts an administrator, a customer and a few orders into the local
// dev database.
// Run: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/ErlanBelekov/storefront/internal/auth"
	"github.com/ErlanBelekov/storefront/internal/domain"
	"github.com/ErlanBelekov/storefront/internal/infrastructure/postgres"
	"github.com/ErlanBelekov/storefront/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	seedPassword  = "seed-password"
	adminEmail    = "admin@test.local"
	customerEmail = "customer@test.local"
)

var items = [][]domain.LineItem{
	{
		{Name: "Linen Shirt", Size: "M", Quantity: 2, UnitPrice: 4500, DiscountPercent: 10, Image: "/img/linen-shirt.jpg"},
		{Name: "Canvas Tote", Size: "OS", Quantity: 1, UnitPrice: 1800, Image: "/img/tote.jpg"},
	},
	{
		{Name: "Wool Coat", Size: "L", Quantity: 1, UnitPrice: 21000, DiscountPercent: 25, Image: "/img/wool-coat.jpg"},
	},
	{
		{Name: "Running Socks", Size: "S", Quantity: 3, UnitPrice: 900, Image: "/img/socks.jpg"},
	},
}

// advance walks each seeded order to a different status.
var advance = [][]domain.OrderStatus{
	nil,
	{domain.OrderStatusInTransit},
	{domain.OrderStatusInTransit, domain.OrderStatusCompleted},
}

func main() {
	ctx := context.Background()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set, run: direnv allow")
	}

	pool, err := postgres.NewPool(ctx, dbURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	hasher, err := auth.NewPasswordHasher(bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hasher: %v", err)
	}

	users := postgres.NewUserRepository(pool)
	orders := postgres.NewOrderRepository(pool)

	admin, err := upsertUser(ctx, users, hasher, "Seed Admin", adminEmail, domain.RoleAdministrator)
	if err != nil {
		log.Fatalf("seed admin: %v", err)
	}
	customer, err := upsertUser(ctx, users, hasher, "Seed Customer", customerEmail, domain.RoleCustomer)
	if err != nil {
		log.Fatalf("seed customer: %v", err)
	}

	existing, err := orders.FindByOwner(ctx, customer.ID)
	if err != nil {
		log.Fatalf("list customer orders: %v", err)
	}

	var created []*domain.Order
	if len(existing) == 0 {
		for i, li := range items {
			o, err := orders.Insert(ctx, &domain.Order{
				UserID: customer.ID,
				Shipping: domain.ShippingInfo{
					Name:    "Seed Customer",
					Address: "1 Test Street, Testville",
					Phone:   "+1 555 0100",
				},
				Items:  li,
				Status: domain.OrderStatusPending,
			})
			if err != nil {
				log.Fatalf("insert order %d: %v", i, err)
			}
			for _, to := range advance[i] {
				o, err = orders.UpdateStatus(ctx, repository.StatusChange{
					OrderID: o.ID,
					From:    o.Status,
					To:      to,
					ActorID: admin.ID,
				})
				if err != nil {
					log.Fatalf("advance order %d to %s: %v", i, to, err)
				}
			}
			created = append(created, o)
		}
	}

	fmt.Println("Seed complete")
	fmt.Println()
	fmt.Printf("  Admin:          %s  (id %s)\n", admin.Email, admin.ID)
	fmt.Printf("  Customer:       %s  (id %s)\n", customer.Email, customer.ID)
	fmt.Printf("  Password:       %s\n", seedPassword)
	fmt.Printf("  Orders created: %d  (customer already had %d)\n", len(created), len(existing))
	for _, o := range created {
		fmt.Printf("    %s  %-10s  total %s\n", o.ID, o.Status, o.Total())
	}

	fmt.Println()
	fmt.Println("How to test:")
	fmt.Println()
	fmt.Println("  Step 1: log in as the admin:")
	fmt.Println()
	fmt.Printf("    curl -s -X POST http://localhost:8080/users/login \\\n")
	fmt.Printf("      -H 'Content-Type: application/json' \\\n")
	fmt.Printf("      -d '{\"email\":\"%s\",\"password\":\"%s\"}'\n", adminEmail, seedPassword)
	fmt.Println()
	fmt.Println("  Step 2: list every order:")
	fmt.Println()
	fmt.Println("    export JWT=eyJ...")
	fmt.Println("    curl -s http://localhost:8080/orders/admin -H \"Authorization: Bearer $JWT\"")
	fmt.Println()
	fmt.Println("  Step 3: ship the pending one:")
	fmt.Println()
	fmt.Println("    curl -s -X PUT http://localhost:8080/orders/ORDER_ID/status \\")
	fmt.Println("      -H \"Authorization: Bearer $JWT\" -H 'Content-Type: application/json' \\")
	fmt.Println("      -d '{\"status\":\"in_transit\"}'")
}

// upsertUser returns the existing account for email or creates it.
func upsertUser(ctx context.Context, users repository.UserRepository, hasher *auth.PasswordHasher, name, email string, role domain.Role) (*domain.User, error) {
	u, err := users.FindByEmail(ctx, email)
	if err == nil {
		if u.Role != role {
			return users.SetRole(ctx, u.ID, role)
		}
		return u, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := hasher.Hash(seedPassword)
	if err != nil {
		return nil, err
	}
	return users.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
}
