// File: internal/testing/fakeshop/templates.go
package fakeshop

import "html/template"

const headerHTML = `{{define "header"}}
<div class="header">
  <div class="header-links">
    <ul>
    {{if .ShowAccount}}
      <li><a href="/customer/info" class="account">{{.Customer}}</a></li>
      <li><a href="/logout" class="ico-logout">Log out</a></li>
    {{else}}
      <li><a href="/register" class="ico-register">Register</a></li>
      <li><a href="/login" class="ico-login">Log in</a></li>
    {{end}}
      <li id="topcartlink"><a href="/cart" class="ico-cart"><span class="cart-label">Shopping cart</span> <span class="cart-qty">({{.CartQty}})</span></a></li>
    </ul>
  </div>
</div>
{{end}}`

var loginTemplate = template.Must(template.New("login").Parse(headerHTML + `<!DOCTYPE html>
<html><head><title>Demo Web Shop. Login</title></head>
<body>
{{template "header" .}}
<div class="page login-page">
  <h1>Welcome, Please Sign In!</h1>
  {{with .Data.Error}}<div class="validation-summary-errors"><span>{{.}}</span></div>{{end}}
  <form method="post" action="/login">
    <div class="inputs"><label for="Email">Email:</label><input class="email" id="Email" name="Email" type="text"></div>
    <div class="inputs"><label for="Password">Password:</label><input class="password" id="Password" name="Password" type="password"></div>
    <div class="buttons"><input class="button-1 login-button" type="submit" value="Log in"></div>
  </form>
</div>
</body></html>`))

var homeTemplate = template.Must(template.New("home").Parse(headerHTML + `<!DOCTYPE html>
<html><head><title>Demo Web Shop</title></head>
<body>
{{template "header" .}}
<div class="page home-page"><div class="topic-html-content-header">Welcome to our store</div></div>
</body></html>`))

var cartTemplate = template.Must(template.New("cart").Parse(headerHTML + `<!DOCTYPE html>
<html><head><title>Demo Web Shop. Shopping Cart</title></head>
<body>
{{template "header" .}}
<div class="page shopping-cart-page">
  <h1>Shopping cart</h1>
  {{if .Lines}}
  <form method="post" action="/cart" enctype="multipart/form-data">
    <table class="cart">
      <tbody>
      {{range .Lines}}
        <tr class="cart-item-row">
          <td class="remove-from-cart"><input type="checkbox" name="removefromcart" value="{{.ID}}"></td>
          <td class="product"><a href="/p/{{.ProductID}}" class="product-name">{{.Name}}</a></td>
          <td class="qty nobr"><input name="itemquantity{{.ID}}" type="text" value="{{.Quantity}}" class="qty-input"></td>
        </tr>
      {{end}}
      </tbody>
    </table>
    <input type="submit" name="updatecart" value="Update shopping cart" class="button-2 update-cart-button">
  </form>
  {{else}}
  <div class="order-summary-content">Your Shopping Cart is empty!</div>
  {{end}}
</div>
</body></html>`))
