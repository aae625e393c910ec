// Command devtoken prints a signed bearer token for local testing.
//
//	devtoken -user u-1 -company acme -role company_admin
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/warp/payroll-engine/auth"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/labor"
)

func main() {
	cfg := config.Load()

	user := flag.String("user", "dev-user", "user id")
	company := flag.String("company", "dev-company", "company id")
	role := flag.String("role", string(labor.RoleCompanyAdmin), "super_admin, company_admin or worker_manager")
	ttl := flag.Duration("ttl", 12*time.Hour, "token lifetime")
	flag.Parse()

	if !labor.Role(*role).Valid() {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(2)
	}

	claims := auth.ClaimsFor(labor.AuthContext{
		UserID:    labor.UserID(*user),
		CompanyID: labor.CompanyID(*company),
		Role:      labor.Role(*role),
	})
	token, err := auth.GenerateToken(cfg.JWTSecret, claims, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
