package middleware

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"wallagg/pkg/crypto"
)

// Auth - middleware аутентификации API по bearer токену
//
// Токен сравнивается с bcrypt хешем из конфигурации (API_TOKEN_HASH).
// Сам токен на сервере не хранится. Сравнение через bcrypt устойчиво
// к timing attacks.
//
// Формат заголовка: Authorization: Bearer <token>
func Auth(tokenHash string, logger *zap.Logger) func(http.Handler) http.Handler {
	log := logger.Named("Auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			if err := crypto.VerifyToken(token, tokenHash); err != nil {
				log.Warn("отклонён запрос с невалидным токеном",
					zap.String("remote_addr", r.RemoteAddr),
					zap.String("path", r.URL.Path))
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
