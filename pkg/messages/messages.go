// Package messages holds the closed catalog of user-facing message keys and
// renders them per locale. Errors carry a Key plus arguments; text is only
// produced at the HTTP boundary.
package messages

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Key identifies a catalog entry.
type Key string

// Entity names. Passed as arguments so they are translated with the message.
const (
	EntityCustomer      Key = "entity.customer"
	EntityContactor     Key = "entity.contactor"
	EntityWarehouse     Key = "entity.warehouse"
	EntityInventoryItem Key = "entity.inventory_item"
)

// Domain failures.
const (
	NotFound            Key = "error.not_found"            // entity, id
	NotFoundBy          Key = "error.not_found_by"         // entity, field, value
	FieldConflict       Key = "error.field_conflict"       // entity, field, value
	AlreadyActive       Key = "error.already_active"       // entity, id
	Locked              Key = "error.locked"               // entity, id
	VersionConflict     Key = "error.version_conflict"     // entity, id, expected version
	PersistenceFailed   Key = "error.persistence_failed"   // entity, id
	NegativeStock       Key = "error.negative_stock"       // sku, current, delta
	WarehouseInactive   Key = "error.warehouse_inactive"   // id
	WarehouseHasItems   Key = "error.warehouse_has_items"  // id, count
	UnknownCache        Key = "error.unknown_cache"        // name
	InvalidSortField    Key = "error.invalid_sort_field"   // field
	InvalidSortOrder    Key = "error.invalid_sort_order"   // direction
	InvalidParameter    Key = "error.invalid_parameter"    // name
	InvalidBody         Key = "error.invalid_body"         //
	BodyTooLarge        Key = "error.body_too_large"       // limit
	ValidationFailed    Key = "error.validation_failed"    //
	IdempotencyRequired Key = "error.idempotency_required" //
	IdempotencyReused   Key = "error.idempotency_reused"   //
	IdempotencyPending  Key = "error.idempotency_pending"  //
	Unauthorized        Key = "error.unauthorized"         //
	Forbidden           Key = "error.forbidden"            //
	RateLimited         Key = "error.rate_limited"         //
	RequestTimeout      Key = "error.request_timeout"      //
	UpstreamTimeout     Key = "error.upstream_timeout"     // route
	UpstreamUnavailable Key = "error.upstream_unavailable" // route
	DependencyFailed    Key = "error.dependency_failed"    // dependency
	Internal            Key = "error.internal"             //
)

// Field validation messages, keyed by validator tag.
const (
	FieldRequired Key = "validation.required"
	FieldEmail    Key = "validation.email"
	FieldMin      Key = "validation.min" // param
	FieldMax      Key = "validation.max" // param
	FieldOneOf    Key = "validation.oneof"
	FieldUUID     Key = "validation.uuid"
	FieldNumeric  Key = "validation.numeric"
	FieldInvalid  Key = "validation.invalid"
)

var (
	supported = []language.Tag{language.English, language.Spanish}
	matcher   = language.NewMatcher(supported)
	builder   = catalog.NewBuilder(catalog.Fallback(language.English))
)

var entries = map[language.Tag]map[Key]string{
	language.English: {
		EntityCustomer:      "customer",
		EntityContactor:     "contactor",
		EntityWarehouse:     "warehouse",
		EntityInventoryItem: "inventory item",

		NotFound:            "%[1]s %[2]v not found",
		NotFoundBy:          "%[1]s with %[2]s %[3]v not found",
		FieldConflict:       "%[1]s with %[2]s %[3]v already exists",
		AlreadyActive:       "%[1]s %[2]v is already active",
		Locked:              "%[1]s %[2]v is being modified, retry shortly",
		VersionConflict:     "%[1]s %[2]v was modified concurrently (expected version %[3]v)",
		PersistenceFailed:   "could not persist %[1]s %[2]v",
		NegativeStock:       "adjusting %[1]s by %[3]v would leave negative stock (current %[2]v)",
		WarehouseInactive:   "warehouse %[1]v is not active",
		WarehouseHasItems:   "warehouse %[1]v still holds %[2]v active items",
		UnknownCache:        "unknown cache %[1]q",
		InvalidSortField:    "unsupported sort field %[1]q",
		InvalidSortOrder:    "unsupported sort direction %[1]q",
		InvalidParameter:    "invalid %[1]s parameter",
		InvalidBody:         "invalid request body",
		BodyTooLarge:        "request body exceeds %[1]d bytes",
		ValidationFailed:    "validation failed",
		IdempotencyRequired: "Idempotency-Key header required",
		IdempotencyReused:   "idempotency key reused with a different request body",
		IdempotencyPending:  "a request with this idempotency key is still in progress",
		Unauthorized:        "authentication required",
		Forbidden:           "access denied",
		RateLimited:         "rate limit exceeded",
		RequestTimeout:      "request timed out",
		UpstreamTimeout:     "upstream %[1]s timed out",
		UpstreamUnavailable: "upstream %[1]s is unavailable",
		DependencyFailed:    "dependency %[1]s failed",
		Internal:            "internal server error",

		FieldRequired: "is required",
		FieldEmail:    "must be a valid email",
		FieldMin:      "must be at least %[1]s",
		FieldMax:      "must be at most %[1]s",
		FieldOneOf:    "must be one of %[1]s",
		FieldUUID:     "must be a valid UUID",
		FieldNumeric:  "must be numeric",
		FieldInvalid:  "is invalid",
	},
	language.Spanish: {
		EntityCustomer:      "cliente",
		EntityContactor:     "contacto",
		EntityWarehouse:     "almacén",
		EntityInventoryItem: "artículo de inventario",

		NotFound:            "%[1]s %[2]v no encontrado",
		NotFoundBy:          "%[1]s con %[2]s %[3]v no encontrado",
		FieldConflict:       "ya existe %[1]s con %[2]s %[3]v",
		AlreadyActive:       "%[1]s %[2]v ya está activo",
		Locked:              "%[1]s %[2]v se está modificando, reintente en breve",
		VersionConflict:     "%[1]s %[2]v fue modificado concurrentemente (versión esperada %[3]v)",
		PersistenceFailed:   "no se pudo guardar %[1]s %[2]v",
		NegativeStock:       "ajustar %[1]s en %[3]v dejaría stock negativo (actual %[2]v)",
		WarehouseInactive:   "el almacén %[1]v no está activo",
		WarehouseHasItems:   "el almacén %[1]v aún tiene %[2]v artículos activos",
		UnknownCache:        "caché desconocida %[1]q",
		InvalidSortField:    "campo de orden no soportado %[1]q",
		InvalidSortOrder:    "dirección de orden no soportada %[1]q",
		InvalidParameter:    "parámetro %[1]s inválido",
		InvalidBody:         "cuerpo de solicitud inválido",
		BodyTooLarge:        "el cuerpo de la solicitud supera %[1]d bytes",
		ValidationFailed:    "la validación falló",
		IdempotencyRequired: "se requiere la cabecera Idempotency-Key",
		IdempotencyReused:   "clave de idempotencia reutilizada con otro cuerpo",
		IdempotencyPending:  "una solicitud con esta clave de idempotencia sigue en curso",
		Unauthorized:        "se requiere autenticación",
		Forbidden:           "acceso denegado",
		RateLimited:         "límite de solicitudes excedido",
		RequestTimeout:      "la solicitud excedió el tiempo de espera",
		UpstreamTimeout:     "el servicio %[1]s excedió el tiempo de espera",
		UpstreamUnavailable: "el servicio %[1]s no está disponible",
		DependencyFailed:    "falló la dependencia %[1]s",
		Internal:            "error interno del servidor",

		FieldRequired: "es obligatorio",
		FieldEmail:    "debe ser un correo válido",
		FieldMin:      "debe ser al menos %[1]s",
		FieldMax:      "debe ser como máximo %[1]s",
		FieldOneOf:    "debe ser uno de %[1]s",
		FieldUUID:     "debe ser un UUID válido",
		FieldNumeric:  "debe ser numérico",
		FieldInvalid:  "es inválido",
	},
}

func init() {
	for tag, msgs := range entries {
		for key, msg := range msgs {
			if err := builder.SetString(tag, string(key), msg); err != nil {
				panic(fmt.Sprintf("messages: register %s/%s: %v", tag, key, err))
			}
		}
	}
}

// Known reports whether the key exists in the default locale.
func Known(key Key) bool {
	_, ok := entries[language.English][key]
	return ok
}

// Match resolves an Accept-Language header (or a bare tag) to a supported
// locale, defaulting to fallback when nothing matches.
func Match(header string, fallback language.Tag) language.Tag {
	header = strings.TrimSpace(header)
	if header == "" {
		return fallback
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

// ParseTag resolves a configured locale string, defaulting to English.
func ParseTag(value string) language.Tag {
	return Match(value, language.English)
}

// Render formats key for the locale. Arguments that are themselves keys are
// rendered first so entity names follow the requested language.
func Render(tag language.Tag, key Key, args ...any) string {
	printer := message.NewPrinter(resolve(tag), message.Catalog(builder))
	resolved := make([]any, len(args))
	for i, arg := range args {
		if nested, ok := arg.(Key); ok {
			resolved[i] = printer.Sprintf(string(nested))
			continue
		}
		resolved[i] = arg
	}
	return printer.Sprintf(string(key), resolved...)
}

// resolve maps tag onto a catalog locale. The printer does no matching of its
// own, so an unknown or regional tag would otherwise print the raw key.
func resolve(tag language.Tag) language.Tag {
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}
