// controller/controllers.go
package controller

type Controllers struct {
	Authorizer *AuthorizerController
	Pool       *PoolController
}
