// Package application decide admissão: Service.Check(key) == true significa
// rejeitar. Não conhece HTTP.
package application
