package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "authapi/internal/errors"
	"authapi/internal/middleware"
	"authapi/internal/model"
	"authapi/internal/repository"
	"authapi/internal/service"
)

// UserHandler bundles profile HTTP handlers.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// UpdateProfileRequest lists the fields a user may change. Unknown fields are rejected.
// Values are trimmed before validation; an empty avatar clears it.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,min=2,max=50"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,min=2,max=50"`
	Avatar    *string `json:"avatar,omitempty" validate:"omitempty,url"`
}

// normalize trims every provided field. An empty avatar asks for removal.
func (r *UpdateProfileRequest) normalize() {
	for _, f := range []*string{r.FirstName, r.LastName, r.Avatar} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
}

// GetMe godoc
// @Summary Get own profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=model.PublicUser}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /user/me [get]
func (h *UserHandler) GetMe(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return middleware.ErrMissingToken
	}

	profile, err := h.svc.GetProfile(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile retrieved successfully", profile)
}

// UpdateMe godoc
// @Summary Update own profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body UpdateProfileRequest true "Profile fields"
// @Success 200 {object} Response{data=model.PublicUser}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ErrorResponse
// @Router /user/me [patch]
func (h *UserHandler) UpdateMe(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return middleware.ErrMissingToken
	}

	var req UpdateProfileRequest
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return apperrors.BadRequest("Invalid request body",
			apperrors.FieldError{Path: "body", Message: err.Error()}).WithCode("INVALID_BODY")
	}
	req.normalize()
	check := req
	if check.Avatar != nil && *check.Avatar == "" {
		check.Avatar = nil
	}
	if err := c.Validate(&check); err != nil {
		return err
	}

	profile, err := h.svc.UpdateProfile(c.Request().Context(), id.UserID, service.UpdateProfileInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Avatar:    req.Avatar,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile updated successfully", profile)
}

// GetAllUsers godoc
// @Summary List users
// @Description Paginated listing with optional search over name and email.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Page size" default(10)
// @Param searchTerm query string false "Search term"
// @Param role query string false "Role filter" Enums(USER, ADMIN, SUPER_ADMIN, OWNER)
// @Param isVerified query bool false "Verification filter"
// @Success 200 {object} Response{data=[]model.PublicUser,meta=service.PageMeta}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /user/get-all-users [get]
func (h *UserHandler) GetAllUsers(c echo.Context) error {
	q, err := parseListQuery(c)
	if err != nil {
		return err
	}

	users, meta, err := h.svc.ListUsers(c.Request().Context(), q)
	if err != nil {
		return err
	}
	return respondWithMeta(c, http.StatusOK, "Users retrieved successfully", users, meta)
}

func parseListQuery(c echo.Context) (repository.ListQuery, error) {
	var q repository.ListQuery
	var role string
	if err := echo.QueryParamsBinder(c).
		Int("page", &q.Page).
		Int("limit", &q.Limit).
		String("searchTerm", &q.SearchTerm).
		String("role", &role).
		BindError(); err != nil {
		return q, apperrors.BadRequest("Invalid query parameters",
			apperrors.FieldError{Path: "query", Message: "page and limit must be integers"})
	}

	if role != "" {
		q.Role = model.Role(role)
		if !q.Role.IsValid() {
			return q, apperrors.BadRequest("Invalid query parameters",
				apperrors.FieldError{Path: "role", Message: "unknown role " + strconv.Quote(role)})
		}
	}

	if raw := c.QueryParam("isVerified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return q, apperrors.BadRequest("Invalid query parameters",
				apperrors.FieldError{Path: "isVerified", Message: "must be true or false"})
		}
		q.IsVerified = &v
	}
	return q, nil
}
