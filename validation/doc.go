// Package validation checks user input before it reaches a backend.
//
// Struct rules are go-playground/validator tags on the domain input types.
// Failures come back as [*Error], which maps JSON field names to friendly
// messages and classifies as fault.ErrValidation.
//
// Custom tags registered here:
//
//   - name: letters, spaces, apostrophes and hyphens, 2 to 60 characters.
//   - password: at least 8 characters with a letter and a digit.
//   - role: one of session.Roles.
//   - phone: optional leading +, 10 to 15 digits.
package validation
