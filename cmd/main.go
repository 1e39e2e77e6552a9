// cmd/main.go
package main

import (
	"loan-desk-api/app"
)

// @title           Loan Desk API
// @version         1.0
// @description     Authorization and function-dispatch core of the loan-officer dashboard.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
