package domain

// SignInInput carries credentials for password sign-in.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignUpInput registers a new account.
type SignUpInput struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,name"`
	Password string `json:"password" validate:"required,password"`
	Role     string `json:"role" validate:"required,role"`
}
