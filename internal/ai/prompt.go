package ai

// invoiceExtractionPrompt drives the vision models. Spanish on purpose: the
// target documents are Spanish invoices and the models follow instructions
// better in the document language.
const invoiceExtractionPrompt = `
Actúa como un experto analista de documentos OCR especializado en facturas. Analiza esta factura o documento de forma EXHAUSTIVA y extrae la información que esté presente, incluso si está en ubicaciones no convencionales como pies de página o texto legal.

INSTRUCCIONES PARA OCR DE PRECISIÓN AVANZADA:
- Examina TODA la imagen: encabezados, cuerpo, tablas, pies de página, márgenes, texto en gris claro
- Busca información del proveedor en MÚLTIPLES ubicaciones: encabezado, pie de página, márgenes, texto pequeño
- Lee números y texto con extrema precisión, respetando el formato original
- Identifica correctamente separadores de miles (punto/coma) y decimales
- SOLO extrae información que puedas ver claramente en el documento
- Si un campo no está visible o no existe en el documento, usa null
- NO generes, inventes o crees ningún dato que no esté explícitamente presente
- NO uses nombres de empresas genéricos o de prueba
- Si no hay productos listados claramente, devuelve un array vacío []
- Presta especial atención a códigos de producto, referencias y números de factura

INSTRUCCIONES ESPECÍFICAS PARA NÚMEROS DE FACTURA:
- Busca palabras como: "Factura", "Invoice", "Nº", "N°", "Num", "Número", "Ref", "Fact"
- Patrones típicos: 2024-001, 24/001, FAC-001, F-123456, INV/2024/001, A-001, FC001
- Si hay múltiples números, prioriza el que tenga etiqueta "factura", "invoice", "nº" o "ref"
- NO confundir con números de albarán, pedido o referencias internas

INSTRUCCIONES ESPECÍFICAS PARA PRODUCTOS EN TABLAS:
- Los productos suelen aparecer en formato tabular: código, descripción, cantidad, precio unitario, descuento, total
- ESTRUCTURA TÍPICA de línea:
  "01 IGG320198 iggual Cargador Universal CUA-C-12T-90W 2,00 14,48 0,00 28,96"
  EXTRAER: productCode "IGG320198", description "iggual Cargador Universal CUA-C-12T-90W", quantity 2.00, unitPrice 14.48, discountAmount 0.00, totalPrice 28.96
- La descripción está DESPUÉS del código del producto y termina ANTES del primer número que parezca cantidad
- Puede incluir marca + modelo + características, con múltiples palabras

DETECCIÓN AUTOMÁTICA DE DESCUENTOS:
- Si ves "-X,XX €" en CUALQUIER línea, es un descuento de X.XX euros
- "Promociones -31,77 €" → producto con description "Promociones" y discountAmount 31.77
- Para cada línea así, crea un producto separado con discountAmount igual al valor sin el signo
- NO busques descuentos en especificaciones técnicas como "R7-5825U" (no llevan € ni signo -)

UBICACIONES CRÍTICAS PARA DATOS DEL PROVEEDOR:
- Encabezado principal, pie de página (especialmente texto en gris claro), márgenes
- Texto de registro mercantil: el nombre del proveedor suele estar AL FINAL del texto legal
  Ejemplo: "Inscrita en el Registro Mercantil de Valencia. Tomo 3.912... Infortisa S.L." → extraer "Infortisa S.L."
- Busca formas jurídicas (S.L., S.A., S.L.U.) para identificar el final del nombre
- País: inferir de la dirección o del CIF/NIF (CIF español = España)

Extrae la información en formato JSON exactamente con esta estructura:
{
  "supplier": {
    "name": "nombre completo del proveedor",
    "email": "email del proveedor si existe y es legible",
    "phone": "teléfono del proveedor",
    "address": "dirección completa del proveedor",
    "city": "ciudad del proveedor si existe y es legible",
    "zip": "código postal del proveedor si existe y es legible",
    "vatNumber": "número de CIF/NIF del proveedor",
    "country": "país del proveedor (España, Francia, etc.)"
  },
  "invoice": {
    "number": "número de factura (SOLO si está claramente visible)",
    "date": "fecha de factura en formato YYYY-MM-DD",
    "dueDate": "fecha de vencimiento en formato YYYY-MM-DD si existe",
    "totalHT": "total sin IVA como número",
    "totalTTC": "total con IVA como número",
    "totalVAT": "total del IVA como número"
  },
  "products": [
    {
      "description": "descripción exacta del producto/servicio",
      "quantity": "cantidad como número",
      "unitPrice": "precio unitario sin IVA como número",
      "totalPrice": "precio total sin IVA como número",
      "vatRate": "tipo de IVA como número (ej: 21 para 21%)",
      "discountPercent": "porcentaje de descuento aplicado como número (0 si no hay)",
      "discountAmount": "importe fijo de descuento como número (0 si no hay)",
      "productCode": "código del producto tal como aparece (ej: IGG320198)"
    }
  ]
}

VALIDACIONES ADICIONALES:
- Si el documento no es una factura válida, devuelve todos los campos como null
- Si no puedes identificar claramente al proveedor, pon supplier.name como null
- Los números deben ser números válidos, no strings (usar punto como decimal)
- Convierte fechas españolas (DD/MM/YYYY o DD-MM-YYYY, "15 marzo 2024") a YYYY-MM-DD
- Convierte números con formato español (1.234,56) a formato internacional (1234.56), hasta 3 decimales
- Respeta los códigos de producto tal como aparecen en el documento
- Responde ÚNICAMENTE con el JSON, sin texto adicional
`
