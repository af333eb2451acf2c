package cmd

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/jaswdr/faker"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"domiflash/internal/db"
	"domiflash/internal/models"
	"domiflash/internal/services/delivery"
)

var seedOpts struct {
	restaurants   int
	customers     int
	couriers      int
	products      int
	seed          int64
	password      string
	adminEmail    string
	adminPassword string
}

var seedCategories = []models.Category{
	{Name: "Hamburguesas", Description: "Hamburguesas y sándwiches"},
	{Name: "Pizzas", Description: "Pizzas artesanales"},
	{Name: "Comida típica", Description: "Platos tradicionales"},
	{Name: "Bebidas", Description: "Jugos, gaseosas y más"},
	{Name: "Postres", Description: "Dulces y helados"},
}

var speedClasses = []models.SpeedClass{models.SpeedFast, models.SpeedNormal, models.SpeedSlow}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with demo data",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := db.ConnectWithRetry(cfg, 5, 5*time.Second, log)
		if err != nil {
			return err
		}
		if err := db.Migrate(conn); err != nil {
			return err
		}
		return conn.Transaction(seed)
	},
}

func init() {
	f := seedCmd.Flags()
	f.IntVar(&seedOpts.restaurants, "restaurants", 5, "number of restaurants")
	f.IntVar(&seedOpts.customers, "customers", 20, "number of customers")
	f.IntVar(&seedOpts.couriers, "couriers", 5, "number of couriers")
	f.IntVar(&seedOpts.products, "products", 8, "products per restaurant")
	f.Int64Var(&seedOpts.seed, "seed", 42, "random seed")
	f.StringVar(&seedOpts.password, "password", "Domiflash123", "password for every generated user")
	f.StringVar(&seedOpts.adminEmail, "admin-email", "admin@domiflash.co", "administrator email")
	f.StringVar(&seedOpts.adminPassword, "admin-password", "Admin12345", "administrator password")
}

func seed(tx *gorm.DB) error {
	rnd := rand.New(rand.NewSource(seedOpts.seed))
	fake := faker.NewWithSeed(rand.NewSource(seedOpts.seed))
	base := delivery.Point{Lat: cfg.DeliveryBaseLat, Lng: cfg.DeliveryBaseLng}
	locations := delivery.NewRandomSource(seedOpts.seed)

	userHash, err := bcrypt.GenerateFromPassword([]byte(seedOpts.password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	adminHash, err := bcrypt.GenerateFromPassword([]byte(seedOpts.adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	newUser := func(role models.Role, email string, hash []byte) models.User {
		return models.User{
			Name:         fake.Person().Name(),
			Email:        email,
			PasswordHash: string(hash),
			Address:      fmt.Sprintf("Calle %d # %d-%d, %s", fake.IntBetween(1, 99), fake.IntBetween(1, 99), fake.IntBetween(1, 99), fake.Address().City()),
			Phone:        fmt.Sprintf("+57 3%02d %07d", fake.IntBetween(0, 50), fake.IntBetween(0, 9999999)),
			Role:         role,
			Status:       models.UserStatusActive,
		}
	}

	admin := newUser(models.RoleAdmin, strings.ToLower(seedOpts.adminEmail), adminHash)
	admin.Name = "Administrador"
	if err := tx.Where(models.User{Email: admin.Email}).FirstOrCreate(&admin).Error; err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	for i := range seedCategories {
		if err := tx.Where(models.Category{Name: seedCategories[i].Name}).FirstOrCreate(&seedCategories[i]).Error; err != nil {
			return fmt.Errorf("seed category: %w", err)
		}
	}

	users := make([]models.User, 0, seedOpts.customers+seedOpts.couriers)
	for i := 0; i < seedOpts.customers; i++ {
		users = append(users, newUser(models.RoleCustomer, fmt.Sprintf("cliente%d.%s", i+1, fake.Internet().Email()), userHash))
	}
	for i := 0; i < seedOpts.couriers; i++ {
		users = append(users, newUser(models.RoleCourier, fmt.Sprintf("repartidor%d.%s", i+1, fake.Internet().Email()), userHash))
	}
	if len(users) > 0 {
		if err := tx.Create(&users).Error; err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
	}

	for i := 0; i < seedOpts.restaurants; i++ {
		owner := newUser(models.RoleRestaurant, fmt.Sprintf("restaurante%d.%s", i+1, fake.Internet().Email()), userHash)
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("seed restaurant owner: %w", err)
		}

		loc := delivery.SimulatedLocation(base, locations)
		restaurant := models.Restaurant{
			OwnerID:    owner.ID,
			Name:       fake.Company().Name(),
			Address:    owner.Address,
			Phone:      owner.Phone,
			Lat:        loc.Lat,
			Lng:        loc.Lng,
			SpeedClass: speedClasses[rnd.Intn(len(speedClasses))],
		}
		if err := tx.Create(&restaurant).Error; err != nil {
			return fmt.Errorf("seed restaurant: %w", err)
		}

		products := make([]models.Product, 0, seedOpts.products)
		for j := 0; j < seedOpts.products; j++ {
			categoryID := seedCategories[rnd.Intn(len(seedCategories))].ID
			products = append(products, models.Product{
				RestaurantID: restaurant.ID,
				CategoryID:   &categoryID,
				Name:         fmt.Sprintf("%s %s", fake.Lorem().Word(), fake.Lorem().Word()),
				Description:  fake.Lorem().Sentence(10),
				Price:        float64(fake.IntBetween(8, 60) * 1000),
				Stock:        fake.IntBetween(10, 50),
			})
		}
		if len(products) > 0 {
			if err := tx.Create(&products).Error; err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
		}
	}

	log.WithField("restaurants", seedOpts.restaurants).
		WithField("customers", seedOpts.customers).
		WithField("couriers", seedOpts.couriers).
		Info("demo data created")
	return nil
}
